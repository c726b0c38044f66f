package kafka

// Topics для публикации событий POS.
const (
	// TopicOrderEvents — события заказов и позиций (created, item_added, ...).
	TopicOrderEvents = "pos.order.events"
	// TopicStockEvents — административные изменения склада (stock.adjusted).
	TopicStockEvents = "pos.stock.events"
	// TopicDeadLetterQueue — события, которые не удалось доставить после всех попыток.
	TopicDeadLetterQueue = "pos.dlq"
)

// aggregateProduct — тип агрегата складских событий; всё остальное
// (заказы и их позиции) уходит в topic заказов.
const aggregateProduct = "product"
