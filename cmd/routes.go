package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	authMiddleware := standardMiddleware.Append(app.JWTMiddleware)

	mux := pat.New()

	mux.Get("/healthz", standardMiddleware.ThenFunc(app.healthz))

	// Payments. pat treats "/pay/" as a prefix, so it goes after the longer paths.
	mux.Post("/pay/notify", standardMiddleware.ThenFunc(app.payHandler.Notify))
	mux.Post("/pay/in-app-purchase-verify", authMiddleware.ThenFunc(app.payHandler.VerifyInAppPurchase))
	mux.Post("/pay/", authMiddleware.ThenFunc(app.payHandler.CreatePayment))
	mux.Get("/pay/return", standardMiddleware.ThenFunc(app.payHandler.Return))
	mux.Get("/pay/order/:trade_no", authMiddleware.ThenFunc(app.payHandler.GetOrder))
	mux.Get("/pay/orders", authMiddleware.ThenFunc(app.payHandler.ListOrders))
	mux.Get("/pay/products", standardMiddleware.ThenFunc(app.payHandler.ListProducts))

	return mux
}
