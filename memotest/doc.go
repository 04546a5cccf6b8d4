// Package memotest checks that a memocore.Store behaves the way a memo
// backing tier relies on: reads return what was written, overwrites win,
// Delete drops one key, and long keys still round trip.
//
//	func TestRedisStoreContract(t *testing.T) {
//		store, err := memo.NewRedisStore(ctx, newTestRedisClient(t), memo.WithPrefix("test"))
//		if err != nil {
//			t.Fatal(err)
//		}
//		memotest.RunStoreContract(t, store, memotest.Options{
//			TTL:     time.Second,
//			TTLWait: 1500 * time.Millisecond,
//		})
//	}
package memotest
