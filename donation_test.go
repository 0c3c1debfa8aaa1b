package kthreads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonation_singleLock(t *testing.T) {
	k := newTestKernel(t)
	k.SetPriority(20)
	l := NewLock(k)
	l.Acquire()
	var acquired bool
	_, err := k.Create(`hi`, 60, func(any) {
		l.Acquire()
		acquired = true
		l.Release()
	}, nil)
	require.NoError(t, err)
	// the new thread outranked the caller, ran, donated, and blocked on
	// the lock before Create returned
	assert.Equal(t, 60, k.Priority())
	assert.Equal(t, 20, k.Current().BasePriority())
	assert.True(t, k.Current().Donated())
	assert.False(t, acquired)
	assert.Equal(t, uint64(1), k.Metrics().Donations)

	l.Release()
	assert.Equal(t, 20, k.Priority())
	assert.False(t, k.Current().Donated())
	assert.True(t, acquired)
}

func TestDonation_chained(t *testing.T) {
	k := newTestKernel(t)
	k.SetPriority(20)
	la := NewLock(k)
	lb := NewLock(k)
	la.Acquire()
	var order []string
	_, err := k.Create(`mid`, 40, func(any) {
		lb.Acquire()
		la.Acquire()
		order = append(order, `mid`)
		la.Release()
		lb.Release()
	}, nil)
	require.NoError(t, err)
	// mid holds lb and is blocked on la, donating 40 to the caller
	assert.Equal(t, 40, k.Priority())

	_, err = k.Create(`high`, 60, func(any) {
		lb.Acquire()
		order = append(order, `high`)
		lb.Release()
	}, nil)
	require.NoError(t, err)
	// high's donation to mid propagated through mid's own wait to the
	// caller
	assert.Equal(t, 60, k.Priority())
	assert.Equal(t, 20, k.Current().BasePriority())

	la.Release()
	assert.Equal(t, 20, k.Priority())
	assert.Equal(t, []string{`mid`, `high`}, order)
}

func TestDonation_multipleLocks(t *testing.T) {
	k := newTestKernel(t)
	k.SetPriority(20)
	la := NewLock(k)
	lb := NewLock(k)
	la.Acquire()
	lb.Acquire()
	_, err := k.Create(`wa`, 40, func(any) { la.Acquire(); la.Release() }, nil)
	require.NoError(t, err)
	_, err = k.Create(`wb`, 60, func(any) { lb.Acquire(); lb.Release() }, nil)
	require.NoError(t, err)
	assert.Equal(t, 60, k.Priority())

	// releasing lb drops only its donation; la's waiter still donates
	lb.Release()
	assert.Equal(t, 40, k.Priority())
	la.Release()
	assert.Equal(t, 20, k.Priority())
}

func TestDonation_setPriorityDeferred(t *testing.T) {
	k := newTestKernel(t)
	l := NewLock(k)
	l.Acquire()
	_, err := k.Create(`hi`, 60, func(any) { l.Acquire(); l.Release() }, nil)
	require.NoError(t, err)
	require.Equal(t, 60, k.Priority())

	// while donated, SetPriority moves only the base
	k.SetPriority(40)
	assert.Equal(t, 60, k.Priority())
	assert.Equal(t, 40, k.Current().BasePriority())

	l.Release()
	assert.Equal(t, 40, k.Priority())
}

func TestDonation_setPriorityClamps(t *testing.T) {
	k := newTestKernel(t)
	k.SetPriority(PriMax + 10)
	assert.Equal(t, PriMax, k.Priority())
	k.SetPriority(PriMin - 10)
	assert.Equal(t, PriMin, k.Priority())
}

func TestDonateHooks(t *testing.T) {
	k := newTestKernel(t)
	l := NewLock(k)
	var holder *Thread
	_, err := k.Create(`holder`, PriDefault, func(any) {
		holder = k.Current()
		l.Acquire()
		k.Yield()
		l.Release()
	}, nil)
	require.NoError(t, err)
	k.Yield() // let the holder take the lock and yield back
	require.NotNil(t, holder)
	require.Same(t, holder, l.Holder())

	k.SetPriority(60)
	k.Donate(l)
	assert.Equal(t, 60, holder.Priority())
	assert.True(t, holder.Donated())

	k.Yield() // the holder releases, dropping the donation
	assert.Equal(t, PriDefault, holder.Priority())
	assert.False(t, holder.Donated())
}
