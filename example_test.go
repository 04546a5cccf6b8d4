package memo_test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goforj/memo"
)

func ExampleNew() {
	m := memo.New(func(s string) (int, error) { return len(s), nil })
	n, _ := m.Get("Apple")
	fmt.Println(n)
	n, _ = m.Get("Apple")
	fmt.Println(n, m.Stats().Computations)
	// Output:
	// 5
	// 5 1
}

func ExampleNewPure() {
	m := memo.NewPure(strings.ToUpper)
	fmt.Println(m.MustGet("ada"), m.Len())
	// Output: ADA 1
}

func ExampleNewWithEnv() {
	m := memo.NewWithEnv(10, func(limit int, x int) (bool, error) { return x > limit, nil })
	fmt.Println(m.MustGet(11), m.MustGet(3))
	// Output: true false
}

func ExampleMemo_Get_failure() {
	attempts := 0
	m := memo.New(func(id int) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("upstream unavailable")
		}
		return fmt.Sprintf("user-%d", id), nil
	})
	_, err := m.Get(7)
	fmt.Println(err)
	v, _ := m.Get(7)
	fmt.Println(v, attempts)
	// Output:
	// upstream unavailable
	// user-7 2
}

func ExampleWithStore() {
	ctx := context.Background()
	store, err := memo.NewMemoryStore(ctx, memo.WithCompression(memo.CompressionGzip))
	if err != nil {
		fmt.Println(err)
		return
	}

	calls := 0
	lookup := func(id int) (string, error) {
		calls++
		return fmt.Sprintf("name-%d", id), nil
	}
	a := memo.New(lookup, memo.WithStore[int, string](store))
	b := memo.New(lookup, memo.WithStore[int, string](store))

	fmt.Println(a.MustGet(1), b.MustGet(1), calls)
	// Output: name-1 name-1 1
}

func ExampleNewStore() {
	ctx := context.Background()
	store, err := memo.NewStore(ctx, memo.StoreConfig{Driver: memo.DriverNull})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(store.Driver())

	_, err = memo.NewStore(ctx, memo.StoreConfig{Driver: "etcd"})
	fmt.Println(err != nil)
	// Output:
	// null
	// true
}

func ExampleDefaultKey() {
	s, _ := memo.DefaultKey[any]("3")
	n, _ := memo.DefaultKey[any](3)
	fmt.Println(s, n)
	// Output: string:3 int:3
}
