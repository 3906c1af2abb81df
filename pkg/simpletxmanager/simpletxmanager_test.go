package simpletxmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTransactionManagerWithRetries(t *testing.T) {
	m := NewTransactionManagerWithRetries(nil, 3)
	assert.Equal(t, 3, m.retries)

	// Ноль повторов - валидная настройка: одна попытка без ретраев
	m = NewTransactionManagerWithRetries(nil, 0)
	assert.Equal(t, 0, m.retries)

	m = NewTransactionManagerWithRetries(nil, -1)
	assert.Equal(t, defaultRetries, m.retries)

	m = NewTransactionManager(nil)
	assert.Equal(t, defaultRetries, m.retries)
}
