package metrics

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type Logger interface {
	Log(info *MetricsInfo)
}

// StdoutLogger emits one structured log entry per record.
type StdoutLogger struct {
	entry *log.Entry
}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{entry: log.WithField("pkg", "metrics")}
}

func (l *StdoutLogger) Log(info *MetricsInfo) {
	if err := info.normaliseGeometry(); err != nil {
		l.entry.Warnf("normaliseGeometry() error: %v", err)
	}
	fields := log.Fields{
		"req_time":       info.ReqTime,
		"duration":       info.Duration.String(),
		"file_path":      info.FilePath,
		"operation":      info.Operation,
		"bands":          info.Bands,
		"cols":           info.Cols,
		"rows":           info.Rows,
		"pixels":         info.Pixels,
		"footprint_area": info.FootprintArea,
	}
	if info.Error != "" {
		l.entry.WithFields(fields).WithField("error", info.Error).Warn("extraction failed")
		return
	}
	l.entry.WithFields(fields).Info("extraction done")
}

const defaultQueueSize = 2000
const defaultLogWriters = 2
const defaultMaxLogFileSize = 1024 * 1024 * 1024
const defaultMaxLogFiles = 10

// FileLogger appends JSON records to size-rotated files under LogDir.
// Close must be called to flush pending records.
type FileLogger struct {
	MetricsQueue   chan *MetricsInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Verbose        bool

	wg sync.WaitGroup
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, verbose bool) *FileLogger {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		MetricsQueue:   make(chan *MetricsInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Verbose:        verbose,
	}

	for i := 0; i < defaultLogWriters; i++ {
		logger.wg.Add(1)
		go logger.startLogWriter(i)
	}

	return logger
}

func (l *FileLogger) Log(info *MetricsInfo) {
	l.MetricsQueue <- info
}

// Close stops accepting records and waits for the writers to drain the queue.
func (l *FileLogger) Close() {
	close(l.MetricsQueue)
	l.wg.Wait()
}

func (l *FileLogger) startLogWriter(idx int) {
	defer l.wg.Done()
	entry := log.WithField("pkg", "metrics").WithField("writer", idx)

	f, err := l.openLogFile(idx)
	if err != nil {
		entry.Errorf("log open error: %v", err)
	}
	defer func() {
		if f != nil {
			f.Close()
		}
	}()

	for info := range l.MetricsQueue {
		infoStr, err := info.ToJSON()
		if err != nil {
			entry.Errorf("info.ToJSON() error: %v", err)
			continue
		}
		if f == nil {
			if f, err = l.openLogFile(idx); err != nil {
				entry.Errorf("log open error: %v", err)
				continue
			}
		}

		f, err = l.tryRotateLogFile(f, idx)
		if err != nil {
			continue
		}

		if _, err := f.WriteString(infoStr); err != nil {
			entry.Errorf("write error: %v", err)
			continue
		}
		f.Sync()
	}
}

func (l *FileLogger) logFilePath(idx int) string {
	return path.Join(l.LogDir, fmt.Sprintf("log%d", idx))
}

func (l *FileLogger) openLogFile(idx int) (*os.File, error) {
	return os.OpenFile(l.logFilePath(idx), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (l *FileLogger) tryRotateLogFile(currFile *os.File, idx int) (*os.File, error) {
	entry := log.WithField("pkg", "metrics").WithField("writer", idx)

	info, err := currFile.Stat()
	if err != nil {
		entry.Errorf("log rotation error: %v", err)
		return currFile, nil
	}
	if info.Size() < l.MaxLogFileSize {
		return currFile, nil
	}

	var rotatedLogFilePath string
	for i := 0; i < l.MaxLogFiles; i++ {
		filePath := path.Join(l.LogDir, fmt.Sprintf("log%d.%d", idx, i))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			rotatedLogFilePath = filePath
			break
		}
	}

	if len(rotatedLogFilePath) == 0 {
		rotatedLogFilePath, err = l.oldestRotatedFile(idx)
		if err != nil {
			entry.Errorf("log rotation error: %v", err)
			return currFile, nil
		}
		if l.Verbose {
			entry.Infof("maximum number of log files reached, overwriting %s", rotatedLogFilePath)
		}
		if err := os.Remove(rotatedLogFilePath); err != nil {
			entry.Errorf("log rotation error: %v", err)
			return currFile, nil
		}
	}

	currFile.Close()
	if err := os.Rename(l.logFilePath(idx), rotatedLogFilePath); err != nil {
		entry.Errorf("log rotation error: %v", err)
	} else if l.Verbose {
		entry.Infof("log file rotated: %v", rotatedLogFilePath)
	}

	f, err := l.openLogFile(idx)
	if err != nil {
		entry.Errorf("log rotation error: %v", err)
	}
	return f, err
}

func (l *FileLogger) oldestRotatedFile(idx int) (string, error) {
	files, err := ioutil.ReadDir(l.LogDir)
	if err != nil {
		return "", err
	}

	prefix := fmt.Sprintf("log%d", idx)
	var oldestFile os.FileInfo
	oldestTime := time.Now()
	for _, file := range files {
		if !file.Mode().IsRegular() {
			continue
		}
		fileName := filepath.Base(file.Name())
		if fileName == prefix || strings.TrimSuffix(fileName, path.Ext(fileName)) != prefix {
			continue
		}
		if file.ModTime().Before(oldestTime) {
			oldestFile = file
			oldestTime = file.ModTime()
		}
	}

	if oldestFile == nil {
		return path.Join(l.LogDir, prefix+".0"), nil
	}
	return path.Join(l.LogDir, oldestFile.Name()), nil
}
