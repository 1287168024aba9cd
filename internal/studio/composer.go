package studio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"poststudio/internal/editor"
)

// ErrLastBlock means the thread's only block cannot be removed.
var ErrLastBlock = errors.New("a thread must keep at least one block")

// ErrUnknownBlock means the block id is not part of the thread.
var ErrUnknownBlock = errors.New("unknown block")

// Block is one post in a thread: an id plus its editable document.
type Block struct {
	ID  string
	Doc *editor.Document
}

// Composer holds the thread being drafted. Blocks are ordered; there is
// always at least one.
type Composer struct {
	mu     sync.Mutex
	blocks []*Block
}

// NewComposer creates a thread with a single empty block.
func NewComposer() *Composer {
	c := &Composer{}
	c.blocks = append(c.blocks, newBlock(""))
	return c
}

func newBlock(text string) *Block {
	return &Block{ID: uuid.NewString(), Doc: editor.NewDocument(text)}
}

// AddBlock appends an empty block to the thread and returns it.
func (c *Composer) AddBlock() *Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := newBlock("")
	c.blocks = append(c.blocks, b)
	return b
}

// RemoveBlock deletes a block from the thread. The last remaining block
// cannot be removed.
func (c *Composer) RemoveBlock(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.blocks) == 1 {
		return ErrLastBlock
	}
	for i, b := range c.blocks {
		if b.ID == id {
			b.Doc.SetMounted(false)
			c.blocks = append(c.blocks[:i], c.blocks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownBlock, id)
}

// Block looks up a block by id.
func (c *Composer) Block(id string) (*Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.blocks {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// Blocks returns the thread's blocks in order.
func (c *Composer) Blocks() []*Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}
