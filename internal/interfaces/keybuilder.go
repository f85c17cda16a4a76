package interfaces

// KeyBuilder canonizes requests and partitions into deterministic names
type KeyBuilder interface {
	// RequestKey returns the request identity used inside a partition
	RequestKey(method, url string) string
	// ParseRequestKey splits a request identity back into method and URL
	ParseRequestKey(key string) (method, url string, ok bool)
	// PartitionName returns {prefix}-{version}
	PartitionName(prefix, version string) string
	// ParsePartitionName returns prefix and version when name follows the agent naming contract
	ParsePartitionName(name string) (prefix, version string, ok bool)
}
