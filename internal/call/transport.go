package call

import "github.com/1ureka/phonelink/internal/store"

// SignalingTransport is the slice of the sync store the controller needs.
// Both *store.Tree and *store.Client satisfy it.
//
// Publish and PublishAutoKeyed are fire-and-forget: the controller logs a
// returned error but never retries, and a publish failure alone never fails
// the session — the engine's connection state is the ultimate signal.
type SignalingTransport interface {
	SubscribeValue(path string) (store.Subscription, error)
	SubscribeChildAdded(path string) (store.Subscription, error)
	Publish(path string, value any) error
	PublishAutoKeyed(path string, value any) (string, error)
}
