package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInterruptHandler(t *testing.T) {
	h := NewInterruptHandler(nil, "Import", "")
	assert.NotNil(t, h.writer)
	assert.False(t, h.WasInterrupted())
}

func TestInterrupt_CancelsContext(t *testing.T) {
	var out bytes.Buffer
	h := NewInterruptHandler(&out, "Import", "Relancez l'import : les doublons sont ignorés.")

	ctx := h.HandleInterrupts(context.Background())
	assert.NoError(t, ctx.Err())

	h.Interrupt()
	<-ctx.Done()

	assert.True(t, h.WasInterrupted())
	assert.Contains(t, out.String(), "Import interrompu")
	assert.Contains(t, out.String(), "les doublons sont ignorés")
}

func TestInterrupt_MessageOnce(t *testing.T) {
	var out bytes.Buffer
	h := NewInterruptHandler(&out, "Import", "")
	_ = h.HandleInterrupts(context.Background())

	h.Interrupt()
	h.Interrupt()

	assert.Equal(t, 1, strings.Count(out.String(), "Import interrompu"))
}

func TestParentCancelIsNotAnInterrupt(t *testing.T) {
	var out bytes.Buffer
	h := NewInterruptHandler(&out, "Import", "")

	parent, cancel := context.WithCancel(context.Background())
	ctx := h.HandleInterrupts(parent)
	cancel()
	<-ctx.Done()

	assert.False(t, h.WasInterrupted())
	assert.Empty(t, out.String())
}
