package ledger

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"TradePulse/internal/eventstore"
	"TradePulse/internal/model"
	"TradePulse/internal/storage"
)

// Business-rule rejection reasons, returned as structured results rather
// than errors.
const (
	ReasonInsufficientBalance = "Insufficient balance"
	ReasonNoOpenPosition      = "No active position"
	ReasonUnknownUser         = "Unknown user"
)

// TradeResult is the caller-visible outcome of a buy or sell.
type TradeResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Reason  string  `json:"reason,omitempty"`
	Amount  float64 `json:"amount,omitempty"`
	Balance float64 `json:"balance,omitempty"`
}

// UserInfo is the aggregate view of one user's holdings and the current
// market context.
type UserInfo struct {
	BTCAmount         float64      `json:"btcAmount"`
	NDXAmount         float64      `json:"ndxAmount"`
	BTCPrice          float64      `json:"btcPrice"`
	NDXPrice          float64      `json:"ndxPrice"`
	Balance           float64      `json:"balance"`
	UnrealizedBalance float64      `json:"unrealizedBalance"`
	InitialBalance    float64      `json:"initialBalance"`
	BTCSignal         model.Signal `json:"btcSignal"`
	NDXSignal         model.Signal `json:"ndxSignal"`
}

// BalanceInfo is the realized/unrealized balance pair.
type BalanceInfo struct {
	Balance           float64 `json:"balance"`
	UnrealizedBalance float64 `json:"unrealizedBalance"`
}

// PriceSource provides the most recent price of each asset.
type PriceSource interface {
	LatestPrice() model.LatestPrices
}

// Advisor provides the current directional signals.
type Advisor interface {
	ActionSignal() model.Advice
}

// Ledger executes balance-affecting buy/sell transitions, strictly
// serialized per user. Reads take the same per-user lock so no observer can
// see a zeroed balance without its position or vice versa.
type Ledger struct {
	users          storage.UserStore
	prices         PriceSource
	advisor        Advisor
	events         *eventstore.Store
	locks          *KeyedMutex
	initialBalance float64
	log            zerolog.Logger
	now            func() time.Time
}

// New creates a Ledger. events may be nil when action reflection into the
// time series is not wanted (tests).
func New(users storage.UserStore, prices PriceSource, advisor Advisor, events *eventstore.Store, initialBalance float64, logger zerolog.Logger) *Ledger {
	return &Ledger{
		users:          users,
		prices:         prices,
		advisor:        advisor,
		events:         events,
		locks:          NewKeyedMutex(),
		initialBalance: initialBalance,
		log:            logger.With().Str("component", "ledger").Logger(),
		now:            time.Now,
	}
}

// EnsureUser creates the user with the seed balance if absent, otherwise
// stamps the last login. Returns true when a new user was registered.
func (l *Ledger) EnsureUser(email string) (bool, error) {
	defer l.locks.Lock(email)()

	user, err := l.users.GetUser(email)
	if err != nil {
		return false, err
	}
	now := l.now().UnixMilli()
	if user != nil {
		return false, l.users.TouchLogin(email, now)
	}
	err = l.users.CreateUser(&model.User{
		Email:          email,
		Balance:        l.initialBalance,
		InitialBalance: l.initialBalance,
		CreatedAt:      now,
		LastLoginDate:  now,
	})
	if err != nil {
		return false, err
	}
	l.log.Info().Str("email", email).Msg("registered user")
	return true, nil
}

// Buy deploys the user's full balance into a position of the given type.
// The position insert and balance zeroing commit as one storage transaction
// inside the user's critical section, so they are jointly visible to every
// other ledger operation and a storage fault leaves the ledger untouched.
func (l *Ledger) Buy(email string, assetType model.PositionType) (TradeResult, error) {
	defer l.locks.Lock(email)()

	user, err := l.users.GetUser(email)
	if err != nil {
		return TradeResult{}, err
	}
	if user == nil {
		return TradeResult{Success: false, Reason: ReasonUnknownUser}, nil
	}
	if user.Balance == 0 {
		return TradeResult{Success: false, Reason: ReasonInsufficientBalance}, nil
	}

	price, err := l.priceFor(assetType)
	if err != nil {
		return TradeResult{}, err
	}

	now := l.now().UnixMilli()
	amount := user.Balance / price
	position := &model.Position{
		Email:     email,
		Type:      assetType,
		Amount:    amount,
		Status:    model.PositionOpen,
		CreatedAt: now,
	}
	if err := l.users.RecordBuy(position); err != nil {
		return TradeResult{}, fmt.Errorf("record buy: %w", err)
	}

	l.reflectAction(email, assetType, model.SignalBuy, amount, 0, now)
	l.log.Info().Str("email", email).Str("type", string(assetType)).
		Float64("amount", amount).Float64("price", price).Msg("position opened")

	return TradeResult{Success: true, Message: "Position opened successfully", Amount: amount}, nil
}

// Sell closes the user's open position of the given type and realizes the
// proceeds at the current price. Close and credit commit atomically; a
// failed sell leaves the position open and the proceeds uncredited.
func (l *Ledger) Sell(email string, assetType model.PositionType) (TradeResult, error) {
	defer l.locks.Lock(email)()

	position, err := l.users.FindOpenPosition(email, assetType)
	if err != nil {
		return TradeResult{}, err
	}
	if position == nil {
		return TradeResult{Success: false, Reason: ReasonNoOpenPosition}, nil
	}

	price, err := l.priceFor(assetType)
	if err != nil {
		return TradeResult{}, err
	}

	now := l.now().UnixMilli()
	proceeds := position.Amount * price
	if err := l.users.RecordSell(email, assetType, now, proceeds); err != nil {
		return TradeResult{}, fmt.Errorf("record sell: %w", err)
	}

	l.reflectAction(email, assetType, model.SignalSell, 0, proceeds, now)
	l.log.Info().Str("email", email).Str("type", string(assetType)).
		Float64("proceeds", proceeds).Float64("price", price).Msg("position closed")

	return TradeResult{Success: true, Message: "Position closed successfully", Balance: proceeds}, nil
}

// Advice returns the current signal pair.
func (l *Ledger) Advice() model.Advice {
	return l.advisor.ActionSignal()
}

// Balance returns the realized balance plus the open position valued at the
// current price.
func (l *Ledger) Balance(email string) (BalanceInfo, error) {
	defer l.locks.Lock(email)()

	user, err := l.users.GetUser(email)
	if err != nil {
		return BalanceInfo{}, err
	}
	if user == nil {
		return BalanceInfo{}, fmt.Errorf("user %s not found", email)
	}

	info := BalanceInfo{Balance: user.Balance, UnrealizedBalance: user.Balance}
	position, err := l.users.FindAnyOpenPosition(email)
	if err != nil {
		return BalanceInfo{}, err
	}
	if position != nil {
		prices := l.prices.LatestPrice()
		price := prices.NDXPrice
		if position.Type == model.PositionBTC {
			price = prices.BTCPrice
		}
		info.UnrealizedBalance += position.Amount * price
	}
	return info, nil
}

// Info returns the full per-user view: holdings, prices, balances, signals.
func (l *Ledger) Info(email string) (UserInfo, error) {
	defer l.locks.Lock(email)()

	user, err := l.users.GetUser(email)
	if err != nil {
		return UserInfo{}, err
	}
	if user == nil {
		return UserInfo{}, fmt.Errorf("user %s not found", email)
	}

	btcPosition, err := l.users.FindOpenPosition(email, model.PositionBTC)
	if err != nil {
		return UserInfo{}, err
	}
	ndxPosition, err := l.users.FindOpenPosition(email, model.PositionNDX)
	if err != nil {
		return UserInfo{}, err
	}

	prices := l.prices.LatestPrice()
	advice := l.advisor.ActionSignal()

	info := UserInfo{
		BTCPrice:       prices.BTCPrice,
		NDXPrice:       prices.NDXPrice,
		Balance:        user.Balance,
		InitialBalance: user.InitialBalance,
		BTCSignal:      advice.BTCSignal,
		NDXSignal:      advice.NDXSignal,
	}
	if btcPosition != nil {
		info.BTCAmount = btcPosition.Amount
	}
	if ndxPosition != nil {
		info.NDXAmount = ndxPosition.Amount
	}
	info.UnrealizedBalance = info.BTCAmount*info.BTCPrice + info.NDXAmount*info.NDXPrice + info.Balance
	return info, nil
}

func (l *Ledger) priceFor(assetType model.PositionType) (float64, error) {
	prices := l.prices.LatestPrice()
	price := prices.NDXPrice
	if assetType == model.PositionBTC {
		price = prices.BTCPrice
	}
	if price <= 0 {
		return 0, fmt.Errorf("no current price for %s", assetType)
	}
	return price, nil
}

// reflectAction records an executed trade into the event store under the
// user's email as instance id, mirroring how the ingestor charts the bot's
// own trades. The ledger remains authoritative for actual balances.
func (l *Ledger) reflectAction(email string, assetType model.PositionType, action model.Signal, amount, balance float64, ts int64) {
	if l.events == nil {
		return
	}
	actionKey, amountKey := model.MetricNDXAction, model.MetricNDXAmount
	if assetType == model.PositionBTC {
		actionKey, amountKey = model.MetricBTCAction, model.MetricBTCAmount
	}
	l.events.Append(email, actionKey, string(action), ts)
	l.events.Append(email, amountKey, amount, ts)
	l.events.Append(email, model.MetricBalance, balance, ts)
}
