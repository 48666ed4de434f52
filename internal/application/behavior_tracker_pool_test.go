package application

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultWorkerCount(t *testing.T) {
	assert.Equal(t, 2*runtime.NumCPU(), defaultWorkerCount())
	assert.GreaterOrEqual(t, defaultWorkerCount(), 2)
}
