package service

import "errors"

var (
	ErrRouteNotFound       = errors.New("protected route not found")
	ErrRouteInactive       = errors.New("protected route is not active")
	ErrRouteMisconfigured  = errors.New("protected route has no amount configured")
	ErrCheckoutUnavailable = errors.New("no checkout url returned for charge")
)
