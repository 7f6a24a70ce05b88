package env

// ancestorCache is an optional outer-environment-stack fast path: an
// environment at depth d carries a pre-computed array of
// its d ancestors, so binding resolution can walk a flat slice instead of
// chasing Outer() pointers one at a time. Direct eval and `with` disable it
// for every environment from the point of introduction outward, since
// either can introduce a shadowing binding into an ancestor at runtime.
type ancestorCache struct {
	ancestors []Environment
	enabled   bool
}

// buildAncestorCache computes e's ancestor array by walking Outer() to the
// root and marks the cache enabled. It does not look at the ancestors' own
// cache flags.
func buildAncestorCache(e Environment) *ancestorCache {
	var ancestors []Environment
	cur := e.Outer()
	for cur != nil {
		ancestors = append(ancestors, cur)
		cur = cur.Outer()
	}
	return &ancestorCache{ancestors: ancestors, enabled: true}
}

// invalidateDescendantCaches clears this environment's own cache-enabled
// flag. A declarative environment calls this on any operation that can
// introduce a new binding after the cache was built (CreateMutableBinding,
// CreateImmutableBinding, DeleteBinding). Only this environment's own flag
// changes; caches already built by descendant environments are not touched.
func (e *Declarative) invalidateDescendantCaches() {
	if e.cache != nil {
		e.cache.enabled = false
	}
}

// DisableCache marks this environment's own ancestor cache as stale; caches
// of other environments are not affected. Called when a direct
// eval or a `with` statement is entered in this scope: the cache-enabled
// flag is cleared when any descendant may introduce shadowing.
func (e *Declarative) DisableCache() {
	if e.cache == nil {
		e.cache = &ancestorCache{enabled: false}
		return
	}
	e.cache.enabled = false
}

// AncestorAt returns the ancestor environment n levels up the chain
// (AncestorAt(0) is Outer()), using the cached array when it is present and
// enabled, and falling back to walking Outer() pointers otherwise. A
// disabled or absent cache is always correct, just slower — it never
// returns a stale result, since a disabled cache simply isn't consulted.
func (e *Declarative) AncestorAt(n int) Environment {
	if e.cache == nil {
		e.cache = buildAncestorCache(e)
	}
	if e.cache.enabled && n < len(e.cache.ancestors) {
		return e.cache.ancestors[n]
	}
	cur := e.Outer()
	for i := 0; i < n && cur != nil; i++ {
		cur = cur.Outer()
	}
	return cur
}
