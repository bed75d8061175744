package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/recall/internal/db"
)

// Atomic applies ops inside MULTI/EXEC. rueidis writes the whole DoMulti batch
// to one connection back to back, so nothing interleaves between MULTI and EXEC.
func (s *Store) Atomic(ctx context.Context, ops []db.Op) error {
	if len(ops) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(ops)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case db.OpKindHSet:
			cmds = append(cmds, s.hsetCmd(op.Keys[0], op.Fields))
		case db.OpKindDel:
			if len(op.Keys) == 0 {
				continue
			}
			cmds = append(cmds, s.b().Del().Key(op.Keys...).Build())
		default:
			return fmt.Errorf("unknown op kind %d", op.Kind)
		}
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	if len(results) == 0 {
		return &db.Error{Op: db.OpExec, Err: db.ErrTxAborted}
	}
	for i, res := range results[:len(results)-1] {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpExec, Err: fmt.Errorf("command %d: %w", i, err)}
		}
	}

	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return &db.Error{Op: db.OpExec, Err: db.ErrTxAborted}
		}
		return &db.Error{Op: db.OpExec, Err: err}
	}
	for i := range replies {
		if err := replies[i].Error(); err != nil {
			return &db.Error{Op: db.OpExec, Err: fmt.Errorf("command %d: %w", i, err)}
		}
	}
	return nil
}
