// Package service holds the storefront: the caller of the marketplace
// gateway that the HTTP layer talks to.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/nftstore/internal/chain"
	"github.com/alanyoungcy/nftstore/internal/contract"
	"github.com/alanyoungcy/nftstore/internal/domain"
	"github.com/alanyoungcy/nftstore/internal/market"
	"github.com/alanyoungcy/nftstore/internal/notify"
	"github.com/alanyoungcy/nftstore/internal/units"
)

// balancePlaces is how many fraction digits the display balance keeps.
const balancePlaces = 4

// FeaturedItem is a catalog entry shown ahead of chain listings.
type FeaturedItem struct {
	Name     string
	Price    string
	Image    string
	Category string
}

// Options configure the storefront.
type Options struct {
	Market          market.Options
	DefaultCategory string
	Featured        []FeaturedItem
	FeaturedCreator string
}

// Deps are the optional side channels. Any of them may be nil.
type Deps struct {
	Activity domain.ActivityStore
	Audit    domain.AuditStore
	Bus      domain.SignalBus
	Notifier *notify.Notifier
	Blobs    domain.BlobWriter
}

// SessionInfo describes the connected wallet.
type SessionInfo struct {
	Connected bool   `json:"connected"`
	Account   string `json:"account,omitempty"`
	ChainID   string `json:"chain_id"`
	Network   string `json:"network"`
}

// Balance is a native-currency balance.
type Balance struct {
	Address string `json:"address"`
	Wei     string `json:"wei"`
	Amount  string `json:"amount"`
	Display string `json:"display"`
	Symbol  string `json:"symbol"`
}

// CreateRequest is a new listing.
type CreateRequest struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Category string `json:"category"`
	Image    string `json:"image"`
}

// Storefront runs marketplace operations against the connector's current
// session and reports their outcome on the side channels.
type Storefront struct {
	conn     *chain.Connector
	opts     Options
	featured []domain.Listing
	deps     Deps
	logger   *slog.Logger
}

// NewStorefront builds a Storefront.
func NewStorefront(conn *chain.Connector, opts Options, deps Deps, logger *slog.Logger) *Storefront {
	if opts.DefaultCategory == "" {
		opts.DefaultCategory = domain.DefaultCategory
	}
	return &Storefront{
		conn:     conn,
		opts:     opts,
		featured: featuredListings(opts.Featured, opts.FeaturedCreator, opts.DefaultCategory),
		deps:     deps,
		logger:   logger.With(slog.String("component", "storefront")),
	}
}

// Connect opens a wallet session.
func (s *Storefront) Connect(ctx context.Context) (SessionInfo, error) {
	account, err := s.conn.Connect(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "connect failed",
			slog.String("kind", domain.KindOf(err).String()),
			slog.String("error", err.Error()),
		)
		return s.Session(), err
	}
	info := s.Session()
	s.publish(ctx, domain.ChannelSession, map[string]any{
		"event":    "connected",
		"account":  account,
		"chain_id": info.ChainID,
	})
	s.audit(ctx, "wallet_connected", map[string]any{"account": account})
	return info, nil
}

// Disconnect drops the wallet session.
func (s *Storefront) Disconnect(ctx context.Context) {
	prev := s.Session()
	s.conn.Disconnect()
	if prev.Connected {
		s.publish(ctx, domain.ChannelSession, map[string]any{
			"event":   "disconnected",
			"account": prev.Account,
		})
		s.audit(ctx, "wallet_disconnected", map[string]any{"account": prev.Account})
	}
}

// Session reports the current connection state.
func (s *Storefront) Session() SessionInfo {
	cfg := s.conn.Config()
	info := SessionInfo{ChainID: cfg.ChainIDHex(), Network: cfg.ChainName}
	if sess := s.conn.Current(); sess != nil {
		info.Connected = true
		info.Account = sess.Account.Hex()
	}
	return info
}

// Balance reads the native balance of address.
func (s *Storefront) Balance(ctx context.Context, address string) (Balance, error) {
	wei, err := s.conn.BalanceWei(ctx, address)
	if err != nil {
		return Balance{}, err
	}
	cfg := s.conn.Config()
	return Balance{
		Address: address,
		Wei:     wei.String(),
		Amount:  units.FromSmallest(wei, cfg.Decimals),
		Display: units.FormatFixed(wei, cfg.Decimals, balancePlaces),
		Symbol:  cfg.CurrencySymbol,
	}, nil
}

// CreateListing lists a new item for the connected account.
func (s *Storefront) CreateListing(ctx context.Context, req CreateRequest) (*domain.TxHandle, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Price = strings.TrimSpace(req.Price)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Category) == "" {
		req.Category = s.opts.DefaultCategory
	}

	sess := s.conn.Current()
	handle, err := s.gateway(sess).CreateListing(ctx, req.Name, req.Price, req.Category, req.Image)
	s.afterTx(ctx, sess, domain.ActivityCreate, req.Price, handle, err)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notify.ListingCreated(req.Name, req.Price, s.symbol(), handle.From, handle.Hash))
	return handle, nil
}

// BuyListing purchases the listing with the given id at price.
func (s *Storefront) BuyListing(ctx context.Context, id, price string) (*domain.TxHandle, error) {
	itemID, err := parseItemID(id)
	if err != nil {
		return nil, err
	}
	price = strings.TrimSpace(price)

	sess := s.conn.Current()
	handle, err := s.gateway(sess).BuyListing(ctx, itemID, price)
	s.afterTx(ctx, sess, domain.ActivityBuy, price, handleOrID(handle, itemID), err)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notify.ListingSold(handle.ItemID, price, s.symbol(), handle.From, handle.Hash))
	return handle, nil
}

// Listings returns the featured catalog followed by the contract's unsold
// items. Without a session only the featured catalog is returned.
func (s *Storefront) Listings(ctx context.Context) ([]domain.Listing, error) {
	out := append([]domain.Listing(nil), s.featured...)

	sess := s.conn.Current()
	if sess == nil {
		return out, nil
	}
	items, err := s.gateway(sess).FetchAllListings(ctx)
	if err != nil {
		return nil, err
	}
	return append(out, s.toListings(items)...), nil
}

// MyListings returns the items owned by the connected account.
func (s *Storefront) MyListings(ctx context.Context) ([]domain.Listing, error) {
	items, err := s.gateway(s.conn.Current()).FetchMyListings(ctx)
	if err != nil {
		return nil, err
	}
	return s.toListings(items), nil
}

// Activity returns the connected account's journal, newest first.
func (s *Storefront) Activity(ctx context.Context, opts domain.ListOpts) ([]domain.Activity, error) {
	sess := s.conn.Current()
	if sess == nil {
		return nil, domain.ErrNotConnected
	}
	if s.deps.Activity == nil {
		return nil, fmt.Errorf("%w: activity journal", domain.ErrUnavailable)
	}
	return s.deps.Activity.ListByAccount(ctx, sess.Account.Hex(), opts)
}

// UploadImage stores an image and returns the URI to list it under.
func (s *Storefront) UploadImage(ctx context.Context, filename, contentType string, data io.Reader) (string, error) {
	if s.deps.Blobs == nil {
		return "", fmt.Errorf("%w: image storage", domain.ErrUnavailable)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("%w: content type %q is not an image", domain.ErrInvalidInput, contentType)
	}

	key := imageKey(filename, mediaType)
	if err := s.deps.Blobs.Put(ctx, key, data, mediaType); err != nil {
		return "", fmt.Errorf("storefront: upload image: %w", err)
	}
	uri := s.deps.Blobs.URL(key)
	s.logger.InfoContext(ctx, "image uploaded", slog.String("key", key))
	s.audit(ctx, "image_uploaded", map[string]any{"key": key, "content_type": mediaType})
	return uri, nil
}

func (s *Storefront) gateway(sess *chain.Session) *market.Gateway {
	return market.NewGateway(sess, s.opts.Market, s.logger)
}

func (s *Storefront) symbol() string {
	return s.conn.Config().CurrencySymbol
}

// afterTx journals and publishes the outcome of a create or buy. Failures of
// the side channels are logged only.
func (s *Storefront) afterTx(ctx context.Context, sess *chain.Session, kind domain.ActivityKind, price string, handle *domain.TxHandle, txErr error) {
	if sess == nil {
		return
	}
	act := domain.Activity{
		Kind:      kind,
		Account:   sess.Account.Hex(),
		Price:     price,
		Status:    domain.ActivityConfirmed,
		CreatedAt: time.Now().UTC(),
	}
	if handle != nil {
		act.ItemID = handle.ItemID
		act.TxHash = handle.Hash
	}

	event := map[string]any{
		"event":   eventName(kind),
		"account": act.Account,
		"item_id": act.ItemID,
		"price":   price,
		"hash":    act.TxHash,
	}
	if txErr != nil {
		act.Status = domain.ActivityFailed
		act.ErrorKind = domain.KindOf(txErr).String()
		event["event"] = "tx_failed"
		event["op"] = string(kind)
		event["kind"] = act.ErrorKind
		event["error"] = txErr.Error()
		s.notify(ctx, notify.Failure(string(kind), act.ErrorKind, txErr.Error()))
	}

	if s.deps.Activity != nil {
		if err := s.deps.Activity.Record(ctx, act); err != nil {
			s.logger.WarnContext(ctx, "journal activity failed", slog.String("error", err.Error()))
		}
	}
	s.publish(ctx, domain.ChannelTx, event)
	s.audit(ctx, "tx_"+string(act.Status), map[string]any{
		"kind":    string(kind),
		"account": act.Account,
		"item_id": act.ItemID,
		"hash":    act.TxHash,
	})
}

func (s *Storefront) publish(ctx context.Context, channel string, event map[string]any) {
	if s.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WarnContext(ctx, "marshal event failed", slog.String("error", err.Error()))
		return
	}
	if err := s.deps.Bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Storefront) audit(ctx context.Context, event string, detail map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Storefront) notify(ctx context.Context, msg notify.Message) {
	if !s.deps.Notifier.Enabled(msg.Event) {
		return
	}
	if err := s.deps.Notifier.Notify(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
	}
}

func (s *Storefront) toListings(items []contract.MarketItem) []domain.Listing {
	decimals := s.conn.Config().Decimals
	out := make([]domain.Listing, 0, len(items))
	for _, it := range items {
		out = append(out, toListing(it, decimals))
	}
	return out
}

func toListing(it contract.MarketItem, decimals int) domain.Listing {
	l := domain.Listing{
		Name:     it.Name,
		Price:    units.FromSmallest(it.Price, decimals),
		Seller:   it.Seller.Hex(),
		Owner:    it.Owner.Hex(),
		Image:    it.Image,
		Category: it.Category,
		Sold:     it.Sold,
	}
	if it.ItemId != nil {
		l.ID = it.ItemId.String()
	}
	if it.TokenId != nil {
		l.TokenID = it.TokenId.String()
	}
	return l
}

const featuredPrefix = "featured-"

func featuredListings(items []FeaturedItem, creator, defaultCategory string) []domain.Listing {
	out := make([]domain.Listing, 0, len(items))
	for i, it := range items {
		category := it.Category
		if category == "" {
			category = defaultCategory
		}
		out = append(out, domain.Listing{
			ID:       fmt.Sprintf("%s%d", featuredPrefix, i+1),
			Name:     it.Name,
			Price:    it.Price,
			Seller:   creator,
			Image:    it.Image,
			Category: category,
			Featured: true,
		})
	}
	return out
}

func parseItemID(id string) (*big.Int, error) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, featuredPrefix) {
		return nil, fmt.Errorf("%w: featured listings cannot be purchased", domain.ErrInvalidInput)
	}
	v, ok := new(big.Int).SetString(id, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: listing id %q", domain.ErrInvalidInput, id)
	}
	return v, nil
}

func handleOrID(h *domain.TxHandle, id *big.Int) *domain.TxHandle {
	if h != nil {
		return h
	}
	return &domain.TxHandle{ItemID: id.String()}
}

func eventName(kind domain.ActivityKind) string {
	if kind == domain.ActivityBuy {
		return notify.EventListingSold
	}
	return notify.EventListingCreated
}

// imageKey names an uploaded image object, keeping a recognised extension.
func imageKey(filename, mediaType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return "images/" + uuid.NewString() + ext
}
