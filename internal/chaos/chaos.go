// Package chaos decides, at a fixed random rate, whether a stage should steer
// its next collaborator call toward a guaranteed failure.
package chaos

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// Sentinel is the draw that triggers an injected failure.
	Sentinel = 1

	// DefaultRate applies to the Create, Update and Check storage paths.
	DefaultRate = 15
	// DeleteRate applies to the Delete list path.
	DeleteRate = 3

	// WrongBucketName and WrongKeyName never resolve in storage.
	WrongBucketName = "wrong-bucket-name"
	WrongKeyName    = "wrong-key-name"
)

// Injector decides whether to inject a failure. rate is the denominator N of
// the 1/N failure probability.
type Injector interface {
	ShouldInjectFailure(rate int) bool
}

// RandomInjector draws from a seeded source. Safe for concurrent use.
type RandomInjector struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func NewRandomInjector(seed int64) *RandomInjector {
	return &RandomInjector{rand: rand.New(rand.NewSource(seed))}
}

func NewTimeSeededInjector() *RandomInjector {
	return NewRandomInjector(time.Now().UnixNano())
}

func (r *RandomInjector) ShouldInjectFailure(rate int) bool {
	if rate <= 0 {
		return false
	}
	r.mu.Lock()
	draw := r.rand.Intn(rate)
	r.mu.Unlock()
	return draw == Sentinel
}

// Func adapts a plain function to Injector.
type Func func(rate int) bool

func (f Func) ShouldInjectFailure(rate int) bool {
	return f(rate)
}

var (
	Never  Injector = Func(func(int) bool { return false })
	Always Injector = Func(func(int) bool { return true })
)

// Bucket returns the bucket to use for the next call.
func Bucket(injector Injector, rate int, bucket string) (string, bool) {
	if injector.ShouldInjectFailure(rate) {
		return WrongBucketName, true
	}
	return bucket, false
}

// Key returns the key to use for the next call.
func Key(injector Injector, rate int, key string) (string, bool) {
	if injector.ShouldInjectFailure(rate) {
		return WrongKeyName, true
	}
	return key, false
}
