package memo

import "github.com/goforj/memo/memocore"

// Driver identifies the backend of a backing store.
type Driver = memocore.Driver

// Store is the byte store a Memo can use as a shared second tier.
type Store = memocore.Store

const (
	DriverNull      = memocore.DriverNull
	DriverFile      = memocore.DriverFile
	DriverMemory    = memocore.DriverMemory
	DriverMemcached = memocore.DriverMemcached
	DriverDynamo    = memocore.DriverDynamo
	DriverSQL       = memocore.DriverSQL
	DriverRedis     = memocore.DriverRedis
	DriverNATS      = memocore.DriverNATS
)
