package enum

// ── Group A: state machines (order/stock/request statuses) live in
// internal/database as typed enums, CHECK constrained in the schema. ──

// ── Group B: configurable labels (no DB constraint beyond CHECK lists) ──

const (
	UserRoleManager   = "MANAGER"
	UserRoleReception = "RECEPTION"
	UserRoleWaiter    = "WAITER"
	UserRoleKitchen   = "KITCHEN"
	UserRoleStock     = "STOCK"
)

const (
	PaymentMethodCash       = "CASH"
	PaymentMethodCard       = "CARD"
	PaymentMethodRoomCharge = "ROOM_CHARGE"
	PaymentMethodQRIS       = "QRIS"
)

// Kitchen stock taxonomy.
const (
	StockCategoryProduce  = "PRODUCE"
	StockCategoryMeat     = "MEAT"
	StockCategorySeafood  = "SEAFOOD"
	StockCategoryDairy    = "DAIRY"
	StockCategoryDryGoods = "DRY_GOODS"
	StockCategoryBeverage = "BEVERAGE"
	StockCategoryCleaning = "CLEANING"
)

const (
	UnitKilogram = "kg"
	UnitGram     = "g"
	UnitLiter    = "l"
	UnitPiece    = "pcs"
)
