package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// Redis key 前缀
const (
	AnalysisLockPrefix = "analysis:inflight:"
)
