package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestStatusWithoutDependencies(t *testing.T) {
	st := NewService(nil, "", nil).Status(context.Background())
	assert.Equal(t, Status{OK: true, Storage: "memory", Provider: "fallback"}, st)
}

func TestStatusReportsDatabase(t *testing.T) {
	st := NewService(fakePinger{}, "openai", nil).Status(context.Background())
	assert.True(t, st.OK)
	assert.Equal(t, "postgres", st.Storage)
	assert.Equal(t, "openai", st.Provider)

	st = NewService(fakePinger{err: errors.New("refused")}, "gemini", nil).Status(context.Background())
	assert.True(t, st.OK)
	assert.Equal(t, "unreachable", st.Storage)
}
