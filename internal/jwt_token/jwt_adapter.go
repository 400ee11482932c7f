package jwttoken

import "donation-ledger/pkg/domain"

// ActorAdapter satisfies the auth middleware's validator interface.
type ActorAdapter struct {
	service *JWTService
}

func NewActorAdapter(service *JWTService) *ActorAdapter {
	return &ActorAdapter{service: service}
}

func (a *ActorAdapter) ValidateToken(tokenString string) (domain.Actor, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return domain.Actor{}, err
	}
	return claims.Actor()
}
