package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var callLogHeader = []string{"timestamp", "keyword", "latitude", "longitude", "radius", "response"}

// CallLog appends one CSV row per provider response. Write failures are
// logged and never reach the caller.
type CallLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
	log  *zap.Logger
}

// NewCallLog returns a call log writing to path. An empty path disables it.
func NewCallLog(path string) *CallLog {
	return &CallLog{
		path: path,
		now:  time.Now,
		log:  zap.L().With(zap.String("component", "calllog")),
	}
}

// Path returns the destination file.
func (c *CallLog) Path() string {
	return c.path
}

// Record appends a row. The header is written when the file is new or empty.
func (c *CallLog) Record(keyword string, lat, lng, radiusM float64, response []byte) {
	c.log.Info("api call",
		zap.String("keyword", keyword),
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
		zap.Float64("radius", radiusM),
	)
	if c.path == "" {
		return
	}
	if err := c.append(keyword, lat, lng, radiusM, response); err != nil {
		c.log.Error("call log write failed", zap.String("path", c.path), zap.Error(err))
	}
}

func (c *CallLog) append(keyword string, lat, lng, radiusM float64, response []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &PersistenceError{Op: "open call log", Path: c.path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &PersistenceError{Op: "stat call log", Path: c.path, Err: err}
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(callLogHeader); err != nil {
			return &PersistenceError{Op: "write call log header", Path: c.path, Err: err}
		}
	}

	row := []string{
		c.now().Format(time.DateTime),
		keyword,
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lng, 'f', -1, 64),
		strconv.FormatFloat(radiusM, 'f', -1, 64),
		compactJSON(response),
	}
	if err := w.Write(row); err != nil {
		return &PersistenceError{Op: "write call log", Path: c.path, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &PersistenceError{Op: "flush call log", Path: c.path, Err: err}
	}
	return nil
}

func compactJSON(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
