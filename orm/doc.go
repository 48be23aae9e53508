/*
Package orm provides an easy to use db wrapper.

Break state space into prefixed sections called Buckets.
* Each bucket contains only one type of model.
* It has a primary index and easy queries for one and iteration.
* Sequences provide auto-increment counters scoped to a bucket.
*/
package orm
