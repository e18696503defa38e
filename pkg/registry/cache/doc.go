/*
This package is the shared tier of the registry cache: a key-value
store (memcached, in the subpackage, or redis) that several promoter
processes can read registry data from, so that not every one of them
has to ask the registry.

The interface `Client` stands in for the store. Values carry a refresh
deadline; past it, readers treat the value as stale and fetch it
again, but it stays in the store for a grace period after.
*/
package cache
