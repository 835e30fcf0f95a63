package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// gin context key for the authenticated user
const ContextUserKey = "user"

const MaxUploadSizeMB = 50
