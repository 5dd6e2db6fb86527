package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sony/gobreaker"

	gamelan "github.com/ambiyansyah-risyal/gamelan"
)

// EchoInput is the typed input of the demo operation.
type EchoInput struct {
	Message string `json:"message"`
}

// EchoOutput is the typed output of the demo operation.
type EchoOutput struct {
	Message string `json:"message"`
	Via     string `json:"via"`
}

func main() {
	logger := gamelan.NewConsoleLogger(os.Stderr)

	// An in-process connector standing in for real transport.
	connector := gamelan.ConnectorFunc(func(ctx context.Context, req *gamelan.Request) (*gamelan.Response, error) {
		var in EchoInput
		if err := json.Unmarshal(req.Body, &in); err != nil {
			return nil, err
		}
		body, _ := json.Marshal(EchoOutput{Message: in.Message, Via: req.Endpoint.URL})
		return &gamelan.Response{StatusCode: 200, Body: body}, nil
	})

	provider := gamelan.IdentityProviderFunc(func(ctx context.Context) (*gamelan.Identity, error) {
		return &gamelan.Identity{
			Value:  "session-token",
			Expiry: time.Now().Add(time.Hour),
		}, nil
	})

	signer := gamelan.SignerFunc(func(req *gamelan.Request, id *gamelan.Identity, _ *gamelan.View) (*gamelan.Request, error) {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %v", id.Value))
		return req, nil
	})

	client := gamelan.New(
		gamelan.WithConnector(gamelan.NewBreakerConnector(connector, gobreaker.Settings{})),
		gamelan.WithEndpoint("https://echo.internal"),
		gamelan.WithIdentityProvider(provider),
		gamelan.WithSigner(signer),
		gamelan.WithMaxAttempts(3),
		gamelan.WithAttemptTimeout(2*time.Second),
		gamelan.WithOperationTimeout(10*time.Second),
		gamelan.WithLogger(logger),
		gamelan.WithMetrics(),
	)
	if !client.IsValid() {
		fmt.Fprintln(os.Stderr, "invalid client:", client.ValidationError())
		os.Exit(1)
	}

	echoOp := &gamelan.Operation{
		Name: "Echo",
		Serializer: gamelan.SerializerFunc(func(input any, _ *gamelan.View) (*gamelan.Request, error) {
			body, err := json.Marshal(input)
			if err != nil {
				return nil, err
			}
			return &gamelan.Request{Body: body}, nil
		}),
		Deserializer: gamelan.DeserializerFunc(func(resp *gamelan.Response) (any, error) {
			if resp.StatusCode >= 400 {
				return nil, &gamelan.ModeledError{Code: "EchoFailed", Fault: gamelan.FaultServer}
			}
			var out EchoOutput
			if err := json.Unmarshal(resp.Body, &out); err != nil {
				return nil, err
			}
			return &out, nil
		}),
	}

	out, err := client.Execute(context.Background(), echoOp, &EchoInput{Message: "hello"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "echo failed:", err)
		os.Exit(1)
	}
	fmt.Printf("echoed: %+v\n", out.(*EchoOutput))
}
