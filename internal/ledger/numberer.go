package ledger

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// BillNumberer issues informational bill numbers. Numbers are not guaranteed to be
// unique across restarts and nothing relies on them for identity.
type BillNumberer interface {
	Next() int64
}

// SnowflakeNumberer issues time-ordered numeric bill numbers from a snowflake node.
type SnowflakeNumberer struct {
	node *snowflake.Node
}

// NewSnowflakeNumberer creates a numberer for the given node id (0-1023).
func NewSnowflakeNumberer(nodeID int64) (*SnowflakeNumberer, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("ledger: snowflake node %d: %w", nodeID, err)
	}
	return &SnowflakeNumberer{node: node}, nil
}

// Next implements BillNumberer.
func (n *SnowflakeNumberer) Next() int64 {
	return n.node.Generate().Int64()
}

// clockNumberer uses the epoch millisecond of the recording time.
type clockNumberer struct {
	now func() time.Time
}

func (n clockNumberer) Next() int64 {
	return n.now().UnixMilli()
}
