//nolint
package store

import "github.com/iov-one/custodian"

// Move references for all storage types into this package
// for shorter names everywhere

type ReadOnlyKVStore = custodian.ReadOnlyKVStore
type KVStore = custodian.KVStore
type Iterator = custodian.Iterator
type SetDeleter = custodian.SetDeleter
type Batch = custodian.Batch
type CacheableKVStore = custodian.CacheableKVStore
type KVCacheWrap = custodian.KVCacheWrap
type Model = custodian.Model
