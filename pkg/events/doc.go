// Package events is an in-memory pub/sub broker used to fan out
// conductor-wide occurrences (op integration/rejection, warrants,
// gossip round completion, space/app lifecycle) to the broker's
// subscribers.
// Delivery is best-effort: a slow subscriber drops events rather than
// blocking the publisher.
package events
