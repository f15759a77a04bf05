package anthropic

// CachedSystem returns a single system block marked for prompt caching.
// Used for the fixed response-schema instructions shared by every call of one kind.
func CachedSystem(text, ttl string) []SystemBlock {
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: ttl}}}
}
