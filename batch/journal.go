package batch

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"tilecache/tile"
)

// Journal 断点记录: 每完成一个队列元素追加一行 z/x/y, 下次运行时跳过已完成的元素
type Journal struct {
	file *os.File
	w    *bufio.Writer
	done map[tile.Coord]struct{}
	ch   chan tile.Coord
	log  logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
	err    error
}

// OpenJournal 打开 (或创建) 断点文件并载入已有记录
func OpenJournal(path string, log logrus.FieldLogger) (*Journal, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, fmt.Errorf("journal directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	done := make(map[tile.Coord]struct{})
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		if c, ok := ParseTileLine(sc.Text()); ok {
			done[c] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		file.Close()
		return nil, fmt.Errorf("read journal: %w", err)
	}

	j := &Journal{
		file: file,
		w:    bufio.NewWriter(file),
		done: done,
		ch:   make(chan tile.Coord, DefaultQueueSize),
		log:  log,
	}
	j.wg.Add(1)
	go j.start()
	log.Infof("断点记录任务已开始, %d 条已有记录", len(done))
	return j, nil
}

func (j *Journal) start() {
	defer j.wg.Done()
	for c := range j.ch {
		if _, err := fmt.Fprintf(j.w, "%d/%d/%d\n", c.Z, c.X, c.Y); err != nil && j.err == nil {
			j.err = err
		}
		// flush whenever the backlog is empty
		if len(j.ch) == 0 {
			if err := j.w.Flush(); err != nil && j.err == nil {
				j.err = err
			}
		}
	}
}

// Len 载入的已完成记录数
func (j *Journal) Len() int {
	return len(j.done)
}

// Has reports whether c was finished by an earlier run.
func (j *Journal) Has(c tile.Coord) bool {
	_, ok := j.done[c]
	return ok
}

// Mark 记录完成; Close 之后调用无效
func (j *Journal) Mark(c tile.Coord) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	j.ch <- c
}

// Pending filters out coordinates finished by an earlier run, calling
// skip for each one dropped.
func (j *Journal) Pending(seq iter.Seq[tile.Coord], skip func(tile.Coord)) iter.Seq[tile.Coord] {
	return func(yield func(tile.Coord) bool) {
		for c := range seq {
			if j.Has(c) {
				if skip != nil {
					skip(c)
				}
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// Close flushes pending records and closes the file. Safe to call twice.
func (j *Journal) Close() error {
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.ch)
		j.mu.Unlock()

		j.wg.Wait()
		if err := j.w.Flush(); err != nil && j.err == nil {
			j.err = err
		}
		if err := j.file.Close(); err != nil && j.err == nil {
			j.err = err
		}
		j.log.Infof("断点记录任务已安全退出")
	})
	return j.err
}
