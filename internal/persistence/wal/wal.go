package wal

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var ErrClosed = errors.New("wal closed")

type pending struct {
	rec Record
	ack chan error
}

// Log 既是 Writer 也是 Reader；内部有 group-commit 协程
type Log struct {
	path string

	f  *os.File
	w  *bufio.Writer
	mu sync.Mutex // 保护 Close 与 Size

	ch      chan pending    // 追加记录的通道（带 ack）
	flushCh chan chan error // 外部主动 flush 请求
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once

	interval time.Duration
	batch    int
}

func ensureDir(p string) error {
	dir := filepath.Dir(p)
	return os.MkdirAll(dir, 0o755)
}

func OpenLog(path string, groupCommitEvery time.Duration, batch int) (*Log, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	// 将写游标移动到文件末尾
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, err
	}
	if groupCommitEvery <= 0 {
		groupCommitEvery = 10 * time.Millisecond
	}
	if batch <= 0 {
		batch = 1
	}

	l := &Log{
		path:     path,
		f:        f,
		w:        bufio.NewWriterSize(f, 1<<20), // 1MB 缓冲
		ch:       make(chan pending, 8192),
		flushCh:  make(chan chan error, 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		interval: groupCommitEvery,
		batch:    batch,
	}

	go l.loop()
	return l, nil
}

func (l *Log) AppendItemUpsert(id int, title, content string, done bool, ts int64) error {
	return l.enqueue(Record{Type: ItemUpsert, TS: ts, ItemID: id, Title: title, Content: content, Done: done})
}

func (l *Log) AppendItemDone(id int, done bool, ts int64) error {
	return l.enqueue(Record{Type: ItemDone, TS: ts, ItemID: id, Done: done})
}

func (l *Log) AppendBallotCreate(ballotID int, uuid string, ts int64) error {
	return l.enqueue(Record{Type: BallotCreate, TS: ts, BallotID: ballotID, UUID: uuid})
}

func (l *Log) AppendRankings(ballotID int, itemIDs []int, ts int64) error {
	return l.enqueue(Record{Type: RankingsReplace, TS: ts, BallotID: ballotID, ItemIDs: itemIDs})
}

func (l *Log) enqueue(rec Record) error {
	ack := make(chan error, 1)
	select {
	case l.ch <- pending{rec: rec, ack: ack}:
		// 阻塞等待“本批次 fsync 完成”
		return l.wait(ack)
	case <-l.quit:
		return ErrClosed
	}
}

// wait returns the ack, or ErrClosed if the loop exited without answering.
func (l *Log) wait(ack chan error) error {
	select {
	case err := <-ack:
		return err
	case <-l.done:
		select {
		case err := <-ack:
			return err
		default:
			return ErrClosed
		}
	}
}

// SyncNow 立即触发一次 flush+fsync 并等待完成
func (l *Log) SyncNow() error {
	ack := make(chan error, 1)
	select {
	case l.flushCh <- ack:
		return l.wait(ack)
	case <-l.quit:
		return ErrClosed
	}
}

// Size is the number of bytes durably written so far; use it as a replay offset.
func (l *Log) Size() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return 0, ErrClosed
	}
	st, err := l.f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (l *Log) Close() error {
	l.once.Do(func() { close(l.quit) })
	// 等待后台循环完成最后一次 flush
	<-l.done

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	_ = l.w.Flush()
	_ = l.f.Sync()
	err := l.f.Close()
	l.f = nil
	l.w = nil
	return err
}

func (l *Log) Path() string { return l.path }

// Replay 从文件头或偏移重放；返回最后 offset（下一条记录的起始偏移）
func (l *Log) Replay(fromOffset int64, on func(rec Record, offset int64) error) (int64, error) {
	return ReplayFile(l.path, fromOffset, on)
}

// ReplayFile reads records from path starting at fromOffset. A missing file is an empty log.
func ReplayFile(path string, fromOffset int64, on func(rec Record, offset int64) error) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	if fromOffset > 0 {
		if _, err := f.Seek(fromOffset, io.SeekStart); err != nil {
			return 0, err
		}
	}

	reader := bufio.NewReaderSize(f, 1<<20)
	var off = fromOffset

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			// 容忍尾部半行：没有换行符或解码失败都视为坏点，停止重放
			if line[len(line)-1] != '\n' {
				return off, nil
			}
			var rec Record
			if e := json.Unmarshal(line, &rec); e != nil {
				return off, nil
			}
			if on != nil {
				if e := on(rec, off); e != nil {
					return off, e
				}
			}
			off += int64(len(line))
		}
		if err != nil {
			// EOF：正常结束
			return off, nil
		}
	}
}

// --- 后台 flush loop（group commit） ---
func (l *Log) loop() {
	defer close(l.done)
	tk := time.NewTicker(l.interval)
	defer tk.Stop()

	var batch []pending
	fail := func(err error) error {
		for _, q := range batch {
			q.ack <- err
		}
		batch = batch[:0]
		return err
	}
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		// 单线程写，序列化并写入缓冲
		for _, p := range batch {
			b, err := encodeLine(p.rec)
			if err != nil {
				return fail(err)
			}
			if _, err := l.w.Write(b); err != nil {
				return fail(err)
			}
		}
		if err := l.w.Flush(); err != nil {
			return fail(err)
		}
		// fsync 确保落盘
		if err := l.f.Sync(); err != nil {
			return fail(err)
		}
		for _, q := range batch {
			q.ack <- nil
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case p := <-l.ch:
			batch = append(batch, p)
			if len(batch) >= l.batch {
				_ = flush()
			}
		case ack := <-l.flushCh:
			ack <- flush()
		case <-tk.C:
			_ = flush()
		case <-l.quit:
			// 取尽已入队的记录再退出
			for {
				select {
				case p := <-l.ch:
					batch = append(batch, p)
				default:
					_ = flush()
					return
				}
			}
		}
	}
}

// 序列化单条记录
func encodeLine(rec Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
