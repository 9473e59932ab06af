package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"poolDesk/internal/model"
)

const swapsQuery = `query swaps($pool: String!, $skip: Int!, $first: Int!, $start: BigInt!, $end: BigInt!) {
  swaps(first: $first, skip: $skip, orderBy: timestamp, orderDirection: asc,
        where: {pool: $pool, timestamp_gte: $start, timestamp_lte: $end}) {
    timestamp
    amount0
    amount1
    amountUSD
  }
}`

const poolDaysQuery = `query poolDayDatas($skip: Int!, $first: Int!) {
  poolDayDatas(first: $first, skip: $skip, orderBy: date, orderDirection: desc) {
    date
    volumeUSD
    txCount
    feeTier
    pool {
      id
      token0 { id symbol name decimals }
      token1 { id symbol name decimals }
      token0Price
      token1Price
      liquidity
      createdAtTimestamp
    }
  }
}`

// SubgraphClient queries a market-data GraphQL endpoint for swaps and daily pool statistics.
type SubgraphClient struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSubgraphClient builds a client; timeout bounds each HTTP request.
func NewSubgraphClient(url string, timeout time.Duration, logger *zap.Logger) *SubgraphClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SubgraphClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// FetchTrades returns one page of swaps for pool ordered by timestamp ascending.
// end <= 0 means unbounded.
func (c *SubgraphClient) FetchTrades(ctx context.Context, pool string, skip, first int, start, end int64) ([]model.TradeRecord, error) {
	if end <= 0 {
		end = math.MaxInt64
	}

	var data struct {
		Swaps []model.SwapWire `json:"swaps"`
	}
	err := c.query(ctx, swapsQuery, map[string]interface{}{
		"pool":  pool,
		"skip":  skip,
		"first": first,
		"start": fmt.Sprintf("%d", start),
		"end":   fmt.Sprintf("%d", end),
	}, &data)
	if err != nil {
		return nil, err
	}

	trades := make([]model.TradeRecord, 0, len(data.Swaps))
	for _, swap := range data.Swaps {
		trade, err := TradeFromWire(swap)
		if err != nil {
			return nil, fmt.Errorf("decode swap: %w", err)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// FetchPoolDays returns one page of daily pool statistics.
func (c *SubgraphClient) FetchPoolDays(ctx context.Context, skip, first int) ([]model.PoolDayWire, error) {
	var data struct {
		PoolDayDatas []model.PoolDayWire `json:"poolDayDatas"`
	}
	err := c.query(ctx, poolDaysQuery, map[string]interface{}{
		"skip":  skip,
		"first": first,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.PoolDayDatas, nil
}

func (c *SubgraphClient) query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("subgraph error response",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(bodyBytes)))
		return fmt.Errorf("subgraph returned status %d", resp.StatusCode)
	}

	var gql graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gql); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(gql.Errors) > 0 {
		messages := make([]string, 0, len(gql.Errors))
		for _, e := range gql.Errors {
			messages = append(messages, e.Message)
		}
		return fmt.Errorf("subgraph errors: %s", strings.Join(messages, "; "))
	}
	if len(gql.Data) == 0 {
		return fmt.Errorf("subgraph response without data")
	}
	if err := json.Unmarshal(gql.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
