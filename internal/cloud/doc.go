// Package cloud is the narrow adapter to the remote vector-index service
// and the ingestion message queue.
//
// All operations are blocking calls against the AWS API. The adapter
// performs no retries of its own; retry and backoff are the caller's
// policy. Vendor error codes are translated exactly once at this boundary
// into the stable taxonomy in internal/fault, so no higher layer ever
// inspects an SDK error.
package cloud
