package estore

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"goflare.io/estore/broker"
	"goflare.io/estore/cart"
	"goflare.io/estore/category"
	"goflare.io/estore/driver"
	"goflare.io/estore/event"
	"goflare.io/estore/metrics"
	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
	"goflare.io/estore/order"
	"goflare.io/estore/payment"
	"goflare.io/estore/product"
	"goflare.io/estore/stock"
	"goflare.io/estore/user"
)

type Service interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error)
	CheckoutCart(ctx context.Context, cartID uint64, req CheckoutRequest) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uint64) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uint64, limit, offset uint64) ([]*models.Order, error)
	ListOrders(ctx context.Context, status *enum.OrderStatus, limit, offset uint64) ([]*models.Order, error)
	AcceptOrder(ctx context.Context, orderID uint64) (*models.Order, error)
	RejectOrder(ctx context.Context, orderID uint64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uint64, status enum.OrderStatus) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID, customerID uint64) (*models.Order, error)

	ReturnOrder(ctx context.Context, orderID, customerID uint64) (*models.Order, error)
	ApproveReturnRequest(ctx context.Context, orderID uint64) (*models.Order, error)
	RejectReturnRequest(ctx context.Context, orderID uint64) (*models.Order, error)
	ReturnItem(ctx context.Context, orderID, itemID, customerID uint64) (*models.Order, error)

	GetOrCreateActiveCart(ctx context.Context, customerID uint64, currency stripe.Currency) (*models.Cart, error)
	GetCart(ctx context.Context, cartID uint64) (*models.Cart, error)
	AddItemToCart(ctx context.Context, cartID, productID uint64, planID *uint64, quantity uint64) (*models.Cart, error)
	UpdateCartItemQuantity(ctx context.Context, cartID, itemID, quantity uint64) (*models.Cart, error)
	RemoveItemFromCart(ctx context.Context, cartID, itemID uint64) (*models.Cart, error)
	ClearCart(ctx context.Context, cartID uint64) (*models.Cart, error)
	AbandonExpiredCarts(ctx context.Context) (int64, error)

	SaveProduct(ctx context.Context, req SaveProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, productID uint64) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListProducts(ctx context.Context, categoryID *uint64, limit, offset uint64) ([]*models.Product, error)
	DeleteProduct(ctx context.Context, productID uint64) error
	AdjustProductStock(ctx context.Context, productID uint64, delta int64) (*models.Product, error)
	ListStockMovements(ctx context.Context, productID uint64, limit, offset uint64) ([]*models.StockMovement, error)

	SaveProductPlan(ctx context.Context, plan *models.ProductPlan) (*models.ProductPlan, error)
	ListProductPlans(ctx context.Context, productID uint64) ([]*models.ProductPlan, error)
	DeleteProductPlan(ctx context.Context, planID uint64) error

	SaveCategory(ctx context.Context, category *models.Category) (*models.Category, error)
	GetCategory(ctx context.Context, id uint64) (*models.Category, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
	ListSubcategories(ctx context.Context, parentID uint64) ([]*models.Category, error)
	GetCategoryTree(ctx context.Context) ([]*models.CategoryTree, error)
	DeleteCategory(ctx context.Context, id uint64) error

	RegisterUser(ctx context.Context, req RegisterUserRequest) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetUser(ctx context.Context, userID uint64) (*models.User, error)

	ProcessEvent(ctx context.Context, event *stripe.Event) error
	SubscribePaymentEvents(conn *nats.Conn) error
	Close()
}

// Repositories 服務使用的所有資料存取層
type Repositories struct {
	User     user.Repository
	Category category.Repository
	Product  product.Repository
	Cart     cart.Repository
	Order    order.Repository
	Payment  payment.Repository
	Stock    stock.Repository
	Event    event.Repository
}

type Config struct {
	// Producer 領域事件的來源名稱
	Producer        string
	DefaultCurrency stripe.Currency
	CartTTL         time.Duration
	Workers         int
}

const (
	defaultCartTTL = 7 * 24 * time.Hour
	defaultWorkers = 10
)

type service struct {
	user     user.Repository
	category category.Repository
	product  product.Repository
	cart     cart.Repository
	order    order.Repository
	payment  payment.Repository
	stock    stock.Repository
	event    event.Repository

	transactionManager driver.Transactor
	publisher          broker.Publisher
	metrics            *metrics.Shop
	eventManager       *EventManager
	workerPool         *WorkerPool

	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

func NewService(
	repos Repositories,
	tm driver.Transactor,
	publisher broker.Publisher,
	shopMetrics *metrics.Shop,
	cfg Config,
	logger *zap.Logger) Service {
	return newService(repos, tm, publisher, shopMetrics, cfg, logger)
}

func newService(
	repos Repositories,
	tm driver.Transactor,
	publisher broker.Publisher,
	shopMetrics *metrics.Shop,
	cfg Config,
	logger *zap.Logger) *service {
	if cfg.Producer == "" {
		cfg.Producer = "estore"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = stripe.CurrencyUSD
	}
	if cfg.CartTTL <= 0 {
		cfg.CartTTL = defaultCartTTL
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if publisher == nil {
		publisher = broker.Noop{}
	}

	s := &service{
		user:               repos.User,
		category:           repos.Category,
		product:            repos.Product,
		cart:               repos.Cart,
		order:              repos.Order,
		payment:            repos.Payment,
		stock:              repos.Stock,
		event:              repos.Event,
		transactionManager: tm,
		publisher:          publisher,
		metrics:            shopMetrics,
		cfg:                cfg,
		now:                time.Now,
		logger:             logger,
	}
	s.eventManager = NewEventManager(logger)
	s.registerEventHandlers()
	return s
}

// SubscribePaymentEvents 訂閱金流事件並交由 worker pool 處理
func (s *service) SubscribePaymentEvents(conn *nats.Conn) error {
	if s.workerPool == nil {
		s.workerPool = NewWorkerPool(s.cfg.Workers, s, s.logger)
	}
	return s.eventManager.SubscribeToEvents(conn, s.workerPool)
}

func (s *service) Close() {
	s.eventManager.Unsubscribe()
	if s.workerPool != nil {
		s.workerPool.Shutdown()
	}
}

// publish 在交易提交後發布事件，失敗只記錄
func (s *service) publish(ctx context.Context, eventType broker.EventType, o *models.Order, previous enum.OrderStatus, itemID uint64) {
	payload := broker.OrderPayload{
		OrderID:        o.ID,
		CustomerID:     o.CustomerID,
		Status:         o.Status,
		PreviousStatus: previous,
		ItemID:         itemID,
	}
	if o.Payment != nil {
		payload.Amount = o.Payment.Amount
	}

	env, err := broker.NewEnvelope(eventType, s.cfg.Producer, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, env)
	}
	if err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("event_type", string(eventType)),
			zap.Uint64("order_id", o.ID),
			zap.Error(err))
	}
}
