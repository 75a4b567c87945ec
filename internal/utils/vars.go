package utils

import (
	"errors"
	"time"
)

const DefaultBufferSize = 1024 * 32 // 32KB read buffer per worker
const TempDirPrefix = "linkcheck-"
const ToolUserAgent = "linkcheck/1.0"

const (
	KeyConnectionTimeout   = "connection.timeout"
	KeyReadTimeout         = "read.timeout"
	KeyMaxThreadCount      = "download.max.thread.count"
	KeyMinBlockSize        = "download.min.block.size"
	KeySplitThreshold      = "download.remain.split.threshold"
	KeyFileInfoMaxRetries  = "file.info.query.max.retries"
	KeyMaxFailuresCount    = "max.failures.count"
	KeyUserAgent           = "user.agent"
	KeyProbeRateLimit      = "probe.rate.limit"
	KeyTempDir             = "temp.dir"
	KeyProxyURL            = "proxy.url"
	DefaultConnTimeout     = 10000 * time.Millisecond
	DefaultReadTimeout     = 10000 * time.Millisecond
	DefaultMaxThreads      = 5
	DefaultMinBlockSize    = 65535
	DefaultSplitThreshold  = 65535
	DefaultProbeMaxRetries = 3
	DefaultMaxFailures     = 5
	MinThreads             = 1
	MaxThreads             = 20
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Local-only User-Agent list
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36 Edg/132.0.0.0",
	"curl/7.88.1",
	"Wget/1.21.4",
}
