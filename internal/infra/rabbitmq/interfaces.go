package rabbitmq

import "restaurant-service/internal/repository"

var _ repository.ChangeBus = (*Bus)(nil)
