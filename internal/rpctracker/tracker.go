// Package rpctracker synthesizes timeout responses for outstanding RPC
// requests, per spec.md §4.6: a concurrent map of seq -> entry plus a
// timer wheel, both owned by a single goroutine so cancellation racing
// expiration is resolved without extra locking.
package rpctracker

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kaze-mesh/kaze/internal/packet"
	"github.com/kaze-mesh/kaze/internal/wire"
)

// actionKind tags a wheel-task mutation: Insert or Remove. Expiry is not
// an action; the tracker goroutine's own timer drives it.
type actionKind int

const (
	actionInsert actionKind = iota
	actionRemove
)

type action struct {
	kind actionKind
	hdr  wire.Hdr // Insert only
	seq  uint32   // Remove only
}

// Sink receives synthesized timeout responses.
type Sink func(p packet.Packet)

// Tracker is the RPC request tracker. One Tracker instance owns one
// timer-wheel goroutine; Observe is safe to call concurrently.
type Tracker struct {
	localIdent uint32
	sink       Sink
	log        *zap.SugaredLogger

	actions chan action

	mu      sync.Mutex
	entries map[uint32]wire.Hdr

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New starts the tracker's wheel goroutine. localIdent is stamped as
// src_ident on every synthesized timeout response.
func New(localIdent uint32, sink Sink, log *zap.SugaredLogger) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		localIdent: localIdent,
		sink:       sink,
		log:        log,
		actions:    make(chan action, 256),
		entries:    make(map[uint32]wire.Hdr),
		cancel:     cancel,
	}
	t.wg.Add(1)
	go t.run(ctx)
	return t
}

// Observe inspects an outbound or inbound packet's header and applies the
// transitions from spec.md §4.6: a Req with timeout_ms > 0 is tracked
// (allocating a seq if needed); a Rsp cancels tracking for its seq. The
// (possibly seq-stamped) header is returned.
func (t *Tracker) Observe(h wire.Hdr, allocSeq func() uint32) wire.Hdr {
	switch h.Rpc.Kind {
	case wire.RpcReq:
		if h.TimeoutMs == 0 {
			return h
		}
		if h.Rpc.Seq == 0 {
			h.Rpc.Seq = allocSeq()
		}
		t.actions <- action{kind: actionInsert, hdr: h}
	case wire.RpcRsp:
		t.actions <- action{kind: actionRemove, seq: h.Rpc.Seq}
	}
	return h
}

// Close stops the wheel goroutine and waits for it to exit.
func (t *Tracker) Close() {
	t.cancel()
	t.wg.Wait()
}

func (t *Tracker) run(ctx context.Context) {
	defer t.wg.Done()

	wheel := &timerHeap{}
	heap.Init(wheel)
	byS := make(map[uint32]*timerEntry)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	resetTimer := func() {
		if wheel.Len() == 0 {
			timer.Stop()
			return
		}
		next := (*wheel)[0]
		d := time.Until(time.Unix(0, next.fireAt))
		if d < 0 {
			d = 0
		}
		timer.Stop()
		timer.Reset(d)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case act := <-t.actions:
			switch act.kind {
			case actionInsert:
				e := &timerEntry{seq: act.hdr.Rpc.Seq, fireAt: time.Now().Add(time.Duration(act.hdr.TimeoutMs) * time.Millisecond).UnixNano()}
				t.mu.Lock()
				t.entries[act.hdr.Rpc.Seq] = act.hdr
				t.mu.Unlock()
				heap.Push(wheel, e)
				byS[act.hdr.Rpc.Seq] = e
				resetTimer()

			case actionRemove:
				if e, ok := byS[act.seq]; ok && !e.removed {
					e.removed = true
					delete(byS, act.seq)
				}
				t.mu.Lock()
				delete(t.entries, act.seq)
				t.mu.Unlock()
			}

		case <-timer.C:
			now := time.Now().UnixNano()
			for wheel.Len() > 0 && (*wheel)[0].fireAt <= now {
				e := heap.Pop(wheel).(*timerEntry)
				if e.removed {
					continue
				}
				delete(byS, e.seq)

				t.mu.Lock()
				hdr, ok := t.entries[e.seq]
				delete(t.entries, e.seq)
				t.mu.Unlock()
				if !ok {
					continue
				}

				hdr.SrcIdent = t.localIdent
				resp := packet.FromRetCode(hdr, wire.RetTimeout)
				resp.Hdr.Route = wire.ByIdent(t.localIdent)
				if t.sink != nil {
					t.sink(resp)
				}
			}
			resetTimer()
		}
	}
}
