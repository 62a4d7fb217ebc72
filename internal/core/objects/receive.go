package objects

import "github.com/sandvm/v1/pkg/types"

// 接收暂存区
//
// 🎯 定向转移的两段式协议：发送方 StageReceive 把值暂存到
// (父, 子) 键下，接收方 TakeReceive 恰好消费一次。已消费的
// 条目保留消费标记，第二次取回与从未暂存是两种失败。

// StageReceive 暂存一笔定向转移
//
// 同键重复暂存会覆盖未消费的旧值；已消费的键可以重新暂存，
// 消费标记随之复位。
func (s *Store) StageReceive(parent, child types.ObjectID, value []byte) error {
	if parent.IsZero() || child.IsZero() {
		return wrapReceive("stage", parent, child, types.ErrObjectNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.receives[receiveKey{Parent: parent, Child: child}] = &stagedReceive{
		value: append([]byte(nil), value...),
	}
	return nil
}

// TakeReceive 消费一笔暂存的定向转移
//
// 恰好一次语义：首次取回返回暂存值，再次取回返回
// ErrReceiveConsumed，从未暂存的键返回 ErrReceiveNotStaged。
func (s *Store) TakeReceive(parent, child types.ObjectID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.receives[receiveKey{Parent: parent, Child: child}]
	if !ok {
		return nil, wrapReceive("take", parent, child, types.ErrReceiveNotStaged)
	}
	if r.consumed {
		return nil, wrapReceive("take", parent, child, types.ErrReceiveConsumed)
	}

	r.consumed = true
	value := r.value
	r.value = nil
	return value, nil
}

// HasStagedReceive 判断 (父, 子) 键下是否有未消费的暂存
func (s *Store) HasStagedReceive(parent, child types.ObjectID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.receives[receiveKey{Parent: parent, Child: child}]
	return ok && !r.consumed
}
