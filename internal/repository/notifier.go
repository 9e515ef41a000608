package repository

import "sync"

// changeNotifier はストア変更の通知チャネルを管理する。
// Changedが返すチャネルは次のNotify呼び出しでcloseされ、
// 以降のChangedは新しいチャネルを返す。通知はエッジトリガで、
// 変更の内容は運ばない（購読側が再読み出しする前提）。
type changeNotifier struct {
	mu sync.Mutex
	ch chan struct{}
}

func newChangeNotifier() *changeNotifier {
	return &changeNotifier{ch: make(chan struct{})}
}

// Changed は現在の通知チャネルを返す。
func (n *changeNotifier) Changed() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// Notify は現在の通知チャネルをcloseして待機者全員を起こし、
// 次の変更用のチャネルを張り直す。
func (n *changeNotifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	close(n.ch)
	n.ch = make(chan struct{})
}
