package repository

import (
	"testing"
	"time"
)

func TestChangeNotifier_NotifyClosesCurrentChannel(t *testing.T) {
	n := newChangeNotifier()

	ch := n.Changed()
	select {
	case <-ch:
		t.Fatal("channel should not be closed before Notify")
	default:
	}

	n.Notify()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("channel should be closed after Notify")
	}
}

func TestChangeNotifier_FreshChannelAfterNotify(t *testing.T) {
	n := newChangeNotifier()

	old := n.Changed()
	n.Notify()

	fresh := n.Changed()
	if fresh == old {
		t.Error("Changed should return a new channel after Notify")
	}

	select {
	case <-fresh:
		t.Fatal("fresh channel should not be closed yet")
	default:
	}
}

// 取得済みチャネルは後続のNotifyでも閉じられたままであること。
func TestChangeNotifier_MultipleNotifies(t *testing.T) {
	n := newChangeNotifier()

	ch := n.Changed()
	n.Notify()
	n.Notify()

	select {
	case <-ch:
	default:
		t.Error("channel obtained before the first Notify should be closed")
	}
}
