package redis

import "github.com/redis/rueidis"

// NewStoreForTest wraps an existing client, typically a rueidis mock.
// Keys are not prefixed unless prefix is given.
func NewStoreForTest(c rueidis.Client, prefix ...string) *Store {
	s := &Store{client: c}
	if len(prefix) > 0 {
		s.prefix = prefix[0]
	}
	return s
}
