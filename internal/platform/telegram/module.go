package telegram

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewBotAPI, fx.As(new(API))),
		PolicyFromConfig,
		NewGateway,
	),
)
