// Package badger 提供基于BadgerDB的存储实现
package badger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	badgerconfig "github.com/sandvm/v1/internal/config/storage/badger"
	log "github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	interfaces "github.com/sandvm/v1/pkg/interfaces/infrastructure/storage"
	"github.com/sandvm/v1/pkg/utils"
	runtimeutil "github.com/sandvm/v1/pkg/utils/runtime"
	"go.uber.org/zap"
)

// Store 实现BadgerStore接口
type Store struct {
	db         *badgerdb.DB
	config     *badgerconfig.Config
	logger     log.Logger
	cancelFunc context.CancelFunc // 用于取消后台任务的函数

	// 避免 Close 过程中仍被写入，触发 Badger y.AssertTrue(db.mt != nil) 的 fatal 退出
	closing int32
	writeWg sync.WaitGroup
}

// New 创建新的BadgerStore实例
// 初始化数据库并启动维护任务
func New(config *badgerconfig.Config, logger log.Logger) interfaces.BadgerStore {
	if logger == nil {
		logger = nopLogger{}
	}
	store := &Store{
		config: config,
		logger: logger,
	}

	// 确保数据目录存在
	dataDir := config.GetPath()
	if dataDir == "" {
		// 使用默认路径作为备用，确保路径解析正确
		dataDir = utils.ResolveDataPath("./data/badger")
		logger.Warnf("BadgerDB数据目录路径未配置，使用默认路径: %s", dataDir)
	}

	memoryOnly := config.IsMemoryOnly() || os.Getenv("SVM_MEMORY_ONLY_MODE") == "true"

	if !memoryOnly {
		logger.Infof("初始化BadgerDB存储，数据目录: %s", dataDir)
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			logger.Errorf("无法创建BadgerDB数据目录: %v", err)
			return nil
		}
	}

	// 创建BadgerDB配置
	opts := badgerdb.DefaultOptions(dataDir)
	opts.SyncWrites = config.IsSyncWritesEnabled()
	opts.MemTableSize = config.GetMemTableSize()
	opts.ValueLogFileSize = config.GetValueLogFileSize()

	// 按cgroup内存上限收缩 block/index cache，防止小内存容器RSS过高
	// 64MB覆盖缓存索引查询的常见工作集，<=4GB容器降到32MB
	limit, ok, _ := runtimeutil.GetCgroupMemoryLimitBytes()
	limitMB := uint64(0)
	if ok && limit > 0 {
		limitMB = limit / 1024 / 1024
	}

	if limitMB > 0 && limitMB <= 4096 {
		opts.BlockCacheSize = 32 << 20
		opts.IndexCacheSize = 32 << 20
		opts.NumMemtables = 2
	} else {
		opts.BlockCacheSize = 64 << 20
		opts.IndexCacheSize = 64 << 20
		opts.NumMemtables = 2
	}

	// 设置表现参数
	opts.NumCompactors = 2            // 后台整理工作线程数
	opts.NumLevelZeroTables = 5       // Level 0最大表数
	opts.NumLevelZeroTablesStall = 10 // Level 0表数触发压缩的阈值

	// 设置日志
	opts.Logger = newBadgerLogger(logger)

	// 声明数据库变量
	var db *badgerdb.DB

	if memoryOnly {
		logger.Infof("🧠 内存数据库模式已启用（数据不落盘，进程退出后丢失）")

		memOpts := badgerdb.DefaultOptions("")
		memOpts = memOpts.WithInMemory(true)
		memOpts.Logger = newBadgerLogger(logger)
		memOpts.BlockCacheSize = opts.BlockCacheSize
		memOpts.IndexCacheSize = opts.IndexCacheSize
		memOpts.NumMemtables = opts.NumMemtables
		memDB, memErr := badgerdb.Open(memOpts)
		if memErr != nil {
			logger.Errorf("无法打开内存BadgerDB: %v", memErr)
			return nil
		}
		db = memDB
		logger.Infof("✅ 内存BadgerDB启动成功")
	} else {
		// 安全打开数据库（磁盘）
		var err error
		db, err = safeOpenDB(dataDir, opts, logger)
		if err != nil {
			logger.Errorf("无法打开BadgerDB(磁盘): %v", err)
			return nil
		}
	}

	// 设置数据库实例
	store.db = db

	// 记录启动时的BadgerDB vlog文件信息（用于缓存容量分析）
	if !memoryOnly {
		store.logBadgerVlogInfo(dataDir, logger)
	}

	// 启动维护例程
	ctx, cancel := context.WithCancel(context.Background())
	store.cancelFunc = cancel
	store.StartMaintenanceRoutines(ctx)

	logger.Info("BadgerDB存储初始化完成")
	return store
}

// nopLogger 用于在测试/工具链等 logger 未注入时，避免 nil 指针崩溃。
// 生产环境应通过 DI 注入真实 logger。
type nopLogger struct{}

func (nopLogger) Debug(string)                  {}
func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Info(string)                   {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warn(string)                   {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Error(string)                  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Fatal(string)                  {}
func (nopLogger) Fatalf(string, ...interface{}) {}
func (nopLogger) With(...interface{}) log.Logger { return nopLogger{} }
func (nopLogger) Sync() error                    { return nil }
func (nopLogger) GetZapLogger() *zap.Logger      { return zap.NewNop() }

// Close 关闭存储并释放资源
func (s *Store) Close() error {
	// 进入关闭态：阻断后续写入，并等待 in-flight 写完成
	if !atomic.CompareAndSwapInt32(&s.closing, 0, 1) {
		return nil
	}

	s.logger.Info("🔧 开始关闭BadgerDB存储...")

	// 取消所有后台任务
	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	if s.db == nil {
		s.logger.Info("🔧 数据库连接为空，无需关闭")
		return nil
	}

	// 等待所有写事务退出，避免 Close 过程中仍有 Update/Txn 写入
	waitCh := make(chan struct{})
	go func() {
		s.writeWg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(30 * time.Second):
		s.logger.Warn("⚠️ 等待 in-flight 写事务超时（30s），仍继续关闭 BadgerDB")
	}

	// 关闭数据库
	if err := s.db.Close(); err != nil {
		// 如果是LOCK文件不存在的错误，只记录警告而不返回错误
		if strings.Contains(err.Error(), "LOCK: no such file or directory") {
			s.logger.Warn("BadgerDB LOCK文件已不存在，这通常是正常的关闭过程")
		} else {
			s.logger.Errorf("🔧 关闭BadgerDB失败: %v", err)
			return fmt.Errorf("关闭BadgerDB失败: %w", err)
		}
	}

	// 仅在 db.Close 成功后删除运行标记，异常退出时保留标记供下次启动进入修复流程
	if !s.config.IsMemoryOnly() {
		markerPath := filepath.Join(s.config.GetPath(), "BADGER_RUNNING")
		if err := os.Remove(markerPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warnf("无法删除数据库运行标记: %v", err)
		}
	}

	s.logger.Info("🔧 BadgerDB存储已安全关闭")
	return nil
}

func (s *Store) beginWrite() (func(), error) {
	// 关闭过程中拒绝写入，避免 Badger Close 与写入并发导致 fatal
	if atomic.LoadInt32(&s.closing) == 1 {
		return nil, fmt.Errorf("badger store is closing")
	}
	s.writeWg.Add(1)
	// double-check，避免在 Add 之后进入 closing
	if atomic.LoadInt32(&s.closing) == 1 {
		s.writeWg.Done()
		return nil, fmt.Errorf("badger store is closing")
	}
	return s.writeWg.Done, nil
}

// Get 获取指定键的值
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var valCopy []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if err == badgerdb.ErrKeyNotFound {
				return nil // 键不存在时返回nil值和nil错误
			}
			return err
		}

		// 复制值
		valCopy, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("badger获取键失败: %w", err)
	}

	return valCopy, nil
}

// Set 设置键值对
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	done, err := s.beginWrite()
	if err != nil {
		return err
	}
	defer done()
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, value)
	})
}

// SetWithTTL 设置键值对并指定过期时间
func (s *Store) SetWithTTL(ctx context.Context, key, value []byte, ttl time.Duration) error {
	done, err := s.beginWrite()
	if err != nil {
		return err
	}
	defer done()
	return s.db.Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry(key, value).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// Delete 删除指定键的值
func (s *Store) Delete(ctx context.Context, key []byte) error {
	done, err := s.beginWrite()
	if err != nil {
		return err
	}
	defer done()
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(key)
	})
}

// Exists 检查键是否存在
func (s *Store) Exists(ctx context.Context, key []byte) (bool, error) {
	var exists bool
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			exists = false
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})

	if err != nil {
		return false, fmt.Errorf("badger检查键存在性失败: %w", err)
	}

	return exists, nil
}

// PrefixScan 按前缀扫描键值对
func (s *Store) PrefixScan(ctx context.Context, prefix []byte) (map[string][]byte, error) {
	result := make(map[string][]byte)

	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close() // Badger Iterator.Close() 无返回值

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.Key()

			// 复制键
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)

			// 复制值
			valCopy, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			result[string(keyCopy)] = valCopy
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("badger前缀扫描失败: %w", err)
	}

	return result, nil
}

// 安全启动逻辑
//
// 本数据库只承载可重建的派生数据（重放缓存），因此自愈策略允许在
// 修复失败时重建目录，而不是拒绝启动。
func safeOpenDB(dataDir string, opts badgerdb.Options, logger log.Logger) (*badgerdb.DB, error) {
	// 检查是否存在未完成标记
	markerPath := filepath.Join(dataDir, "BADGER_RUNNING")
	_, err := os.Stat(markerPath)

	if err == nil {
		// 存在标记，可能是异常关闭
		// 但也可能只是标记文件没删除，先尝试直接删除标记并打开
		logger.Warn("检测到BADGER_RUNNING标记文件，可能是上次未正常关闭")

		// 删除标记文件
		if err := os.Remove(markerPath); err != nil && !os.IsNotExist(err) {
			logger.Warnf("无法删除标记文件: %v", err)
		}

		// 尝试直接打开数据库
		db, openErr := badgerdb.Open(opts)
		if openErr == nil {
			// 成功打开，数据库实际上是正常的，只是标记文件没删除
			logger.Info("✅ 数据库打开成功，上次关闭虽然不正常但数据完整")
			// 创建新的运行标记
			if err := os.WriteFile(markerPath, []byte("1"), 0600); err != nil {
				logger.Warnf("无法创建运行标记文件: %v", err)
			}
			return db, nil
		}

		// 直接打开失败，说明确实需要修复
		logger.Warnf("直接打开失败: %v，开始执行修复流程...", openErr)
		if repairErr := forceRepairDatabase(dataDir, opts, logger); repairErr != nil {
			logger.Warnf("强制修复失败，将重建缓存数据库目录: %v", repairErr)
			if rebuildErr := rebuildDataDir(dataDir); rebuildErr != nil {
				return nil, rebuildErr
			}
			logger.Info("缓存数据库目录已重建")
		} else {
			logger.Info("数据库强制修复成功")
		}
	}

	// 创建运行标记
	if err := os.WriteFile(markerPath, []byte("1"), 0600); err != nil {
		logger.Warn("无法创建数据库运行标记")
	}

	// 尝试打开数据库
	db, err := badgerdb.Open(opts)
	if err != nil {
		// 如果还是失败，进行最后的修复尝试
		logger.Errorf("常规打开失败，进行最后修复尝试: %v", err)

		if lastErr := forceRepairDatabase(dataDir, opts, logger); lastErr != nil {
			logger.Warnf("强制修复失败，将重建缓存数据库目录: %v", lastErr)
			if rebuildErr := rebuildDataDir(dataDir); rebuildErr != nil {
				return nil, rebuildErr
			}
		}

		// 再次尝试打开（可能是修复后的数据库，或全新的数据库）
		db, err = badgerdb.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("最终打开数据库失败: %w", err)
		}

		logger.Info("数据库成功打开")
	}

	return db, nil
}

// rebuildDataDir 删除并重建数据库目录
func rebuildDataDir(dataDir string) error {
	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("无法删除损坏的数据库目录: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("无法创建新的数据库目录: %w", err)
	}
	return nil
}

// forceRepairDatabase 强制修复数据库
func forceRepairDatabase(dataDir string, opts badgerdb.Options, logger log.Logger) error {
	logger.Warn("开始强制修复数据库（可能丢失部分数据）")

	// 1. 删除可能损坏的文件
	corruptedFiles := []string{"LOCK", "DISCARD"}
	for _, file := range corruptedFiles {
		filePath := filepath.Join(dataDir, file)
		if _, err := os.Stat(filePath); err == nil {
			if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
				logger.Warnf("删除文件失败 %s: %v", file, err)
			} else if err == nil {
				logger.Infof("删除了可能损坏的文件: %s", file)
			}
		}
	}

	// 2. 尝试以检测模式打开，让BadgerDB自动处理损坏
	repairOpts := opts
	repairOpts.DetectConflicts = false // 禁用冲突检测，提高容错性
	repairOpts.CompactL0OnClose = true // 关闭时压缩L0层

	db, err := badgerdb.Open(repairOpts)
	if err != nil {
		return fmt.Errorf("修复模式打开失败: %w", err)
	}

	// 尝试运行垃圾回收来清理可能的损坏数据
	if gcErr := db.RunValueLogGC(0.1); gcErr != nil && gcErr != badgerdb.ErrNoRewrite {
		logger.Warnf("修复过程中垃圾回收失败: %v", gcErr)
	}

	// 立即关闭，这会触发必要的修复和压缩
	if err := db.Close(); err != nil {
		logger.Warnf("修复后关闭数据库失败: %v", err)
	}

	logger.Info("强制修复完成")
	return nil
}

// badgerLogger 实现BadgerDB的日志接口
type badgerLogger struct {
	logger log.Logger
}

// newBadgerLogger 创建BadgerDB日志适配器
func newBadgerLogger(logger log.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

// Errorf 输出错误日志
func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("[BadgerDB] "+format, args...)
}

// Warningf 输出警告日志
func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("[BadgerDB] "+format, args...)
}

// Infof 输出信息日志
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Infof("[BadgerDB] "+format, args...)
}

// Debugf 输出调试日志
func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf("[BadgerDB] "+format, args...)
}

// logBadgerVlogInfo 记录BadgerDB vlog文件信息（用于缓存容量分析）
func (s *Store) logBadgerVlogInfo(dataDir string, logger log.Logger) {
	vlogFiles, err := filepath.Glob(filepath.Join(dataDir, "*.vlog"))
	if err != nil {
		return
	}

	totalSize := int64(0)
	for _, vlogFile := range vlogFiles {
		if info, err := os.Stat(vlogFile); err == nil {
			totalSize += info.Size()
		}
	}

	// 转换为MB
	totalSizeMB := float64(totalSize) / (1024 * 1024)

	// 获取数据库统计信息
	var dbSizeMB float64
	if s.db != nil {
		lsmSize, vlogSize := s.db.Size()
		dbSizeMB = float64(lsmSize+vlogSize) / (1024 * 1024)
	}

	if logger != nil {
		logger.Infof("📊 [BadgerDB启动] vlog文件统计: 数量=%d, 总大小=%.2fMB, DB总大小=%.2fMB",
			len(vlogFiles), totalSizeMB, dbSizeMB)
	}
}
