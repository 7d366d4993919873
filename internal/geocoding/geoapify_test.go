package geocoding_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/UnknownOlympus/meridian/internal/geocoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoapifyProvider_Reverse(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	apiKey := "test-api-key"

	t.Run("successful reverse geocoding", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "GET", req.Method)
				assert.Contains(t, req.URL.String(), "api.geoapify.com/v1/geocode/reverse")
				assert.Equal(t, "12.9716", req.URL.Query().Get("lat"))
				assert.Equal(t, "77.5946", req.URL.Query().Get("lon"))
				assert.Equal(t, apiKey, req.URL.Query().Get("apiKey"))

				responseBody := `{"results":[{
					"housenumber": "12",
					"street": "MG Road",
					"suburb": "Shivaji Nagar",
					"city": "Bengaluru",
					"state": "Karnataka",
					"postcode": "560001",
					"country": "India",
					"country_code": "in",
					"lat": 12.9716,
					"lon": 77.5946,
					"formatted": "12 MG Road, Bengaluru, Karnataka 560001, India",
					"rank": {"confidence": 0.95}
				}]}`
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(responseBody)),
				}, nil
			},
		}

		provider := geocoding.NewGeoapifyProviderWithClient(mockClient, apiKey, logger)
		result, err := provider.Reverse(ctx, 12.9716, 77.5946)

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, geocoding.ProviderGeoapify, result.Provider)
		assert.Equal(t, "12", result.HouseNumber)
		assert.Equal(t, "MG Road", result.Road)
		assert.Equal(t, "Shivaji Nagar", result.Suburb)
		assert.InEpsilon(t, 0.95, result.RawConfidence, 0.0001)
		assert.True(t, result.HasCoords)
	})

	t.Run("empty response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(`{"results":[]}`)),
				}, nil
			},
		}

		provider := geocoding.NewGeoapifyProviderWithClient(mockClient, apiKey, logger)
		result, err := provider.Reverse(ctx, 0.1, 0.1)

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, geocoding.ErrGeoapifyEmptyResponse)
	})
}

func TestGeoapifyProvider_Forward(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	apiKey := "test-api-key"

	t.Run("successful forward geocoding", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Contains(t, req.URL.String(), "api.geoapify.com/v1/geocode/search")
				assert.Equal(t, "MG Road, Bengaluru", req.URL.Query().Get("text"))
				assert.Equal(t, "1", req.URL.Query().Get("limit"))

				responseBody := `{"results":[{
					"street": "MG Road",
					"city": "Bengaluru",
					"country_code": "in",
					"lat": 12.9752,
					"lon": 77.6057,
					"formatted": "MG Road, Bengaluru, Karnataka, India",
					"rank": {"confidence": 0.8}
				}]}`
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewBufferString(responseBody)),
				}, nil
			},
		}

		provider := geocoding.NewGeoapifyProviderWithClient(mockClient, apiKey, logger)
		result, err := provider.Forward(ctx, "MG Road, Bengaluru")

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.HasCoords)
		assert.InEpsilon(t, 77.6057, result.Longitude, 0.0001)
	})

	t.Run("empty address", func(t *testing.T) {
		provider := geocoding.NewGeoapifyProvider(apiKey, logger)
		result, err := provider.Forward(ctx, "")

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, geocoding.ErrGeoapifyEmptyAddress)
	})

	t.Run("unauthorized", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusForbidden,
					Body:       io.NopCloser(bytes.NewBufferString(`{"error":"forbidden"}`)),
				}, nil
			},
		}

		provider := geocoding.NewGeoapifyProviderWithClient(mockClient, apiKey, logger)
		result, err := provider.Forward(ctx, "some address")

		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, geocoding.ErrGeoapifyUnauthorized)
	})
}
