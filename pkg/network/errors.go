package network

import "errors"

// ErrEdgeNotFound is returned when an eid is not present in the network.
var ErrEdgeNotFound = errors.New("network: edge not found")
