package prediction_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/UnknownOlympus/trafficmodeler/internal/prediction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

const endpoint = "http://predictor.internal/predict"

func TestHTTPPredictor_Predict(t *testing.T) {
	ctx := t.Context()
	logger := slog.Default()

	t.Run("successful prediction", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, http.MethodPost, req.Method)
				assert.Equal(t, endpoint, req.URL.String())
				assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

				var body map[string]map[string]float64
				require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
				assert.InEpsilon(t, 150.0, body["route"]["distanceKm"], 0.0001)
				assert.InEpsilon(t, 180.0, body["route"]["durationMin"], 0.0001)

				return respond(http.StatusOK, `{"riskLevel":"Medium","score":0.42}`), nil
			},
		}

		predictor := prediction.NewHTTPPredictorWithClient(mockClient, endpoint, logger)
		risk, err := predictor.Predict(ctx, 150, 180)

		require.NoError(t, err)
		require.NotNil(t, risk)
		assert.Equal(t, "Medium", risk.RiskLevel)
		assert.InEpsilon(t, 0.42, risk.Score, 0.0001)
	})

	t.Run("values are passed through without validation", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return respond(http.StatusOK, `{"riskLevel":"Catastrophic","score":17.5}`), nil
			},
		}

		predictor := prediction.NewHTTPPredictorWithClient(mockClient, endpoint, logger)
		risk, err := predictor.Predict(ctx, 1, 1)

		require.NoError(t, err)
		assert.Equal(t, "Catastrophic", risk.RiskLevel)
		assert.InEpsilon(t, 17.5, risk.Score, 0.0001)
	})

	t.Run("non 2xx status", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return respond(http.StatusServiceUnavailable, `model warming up`), nil
			},
		}

		predictor := prediction.NewHTTPPredictorWithClient(mockClient, endpoint, logger)
		risk, err := predictor.Predict(ctx, 150, 180)

		require.Nil(t, risk)
		assert.ErrorContains(t, err, "prediction backend returned status 503")
	})

	t.Run("malformed json", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return respond(http.StatusOK, `<html>`), nil
			},
		}

		predictor := prediction.NewHTTPPredictorWithClient(mockClient, endpoint, logger)
		risk, err := predictor.Predict(ctx, 150, 180)

		require.Nil(t, risk)
		assert.ErrorIs(t, err, prediction.ErrMalformedResponse)
	})

	t.Run("missing fields", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return respond(http.StatusOK, `{"riskLevel":"Low"}`), nil
			},
		}

		predictor := prediction.NewHTTPPredictorWithClient(mockClient, endpoint, logger)
		risk, err := predictor.Predict(ctx, 150, 180)

		require.Nil(t, risk)
		assert.ErrorIs(t, err, prediction.ErrMalformedResponse)
	})

	t.Run("HTTP client returns error", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, assert.AnError
			},
		}

		predictor := prediction.NewHTTPPredictorWithClient(mockClient, endpoint, logger)
		_, err := predictor.Predict(ctx, 150, 180)

		require.ErrorIs(t, err, assert.AnError)
	})
}
