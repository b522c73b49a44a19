package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Update(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, NoColorStyles())

	p.Update("rekey", 10000)
	p.Update("reindex", 20000)
	p.Done("Reindex complete")

	out := buf.String()
	assert.Contains(t, out, "[rekey] 10000 records")
	assert.Contains(t, out, "[reindex] 20000 records")
	assert.Contains(t, out, "Reindex complete")
}

func TestNoColorStyles_RenderPassthrough(t *testing.T) {
	s := NoColorStyles()
	assert.Equal(t, "plain", s.Success.Render("plain"))
}
