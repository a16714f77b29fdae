package engine

import (
	"matchbook/internal/common"

	"github.com/google/uuid"
)

// OrderQueue is the FIFO of orders resting at one price. The front is the oldest
// order and is always matched first.
type OrderQueue struct {
	orders []*common.Order
}

func (q *OrderQueue) Len() int { return len(q.orders) }

// Append pushes an order onto the back of the queue.
func (q *OrderQueue) Append(order *common.Order) {
	q.orders = append(q.orders, order)
}

// Peek returns the front order. The pointer is owned by the queue.
func (q *OrderQueue) Peek() (*common.Order, error) {
	if len(q.orders) == 0 {
		return nil, common.ErrEmptyQueue
	}
	return q.orders[0], nil
}

func (q *OrderQueue) PopFront() (*common.Order, error) {
	if len(q.orders) == 0 {
		return nil, common.ErrEmptyQueue
	}
	front := q.orders[0]
	q.orders[0] = nil
	q.orders = q.orders[1:]
	return front, nil
}

// Remove takes the order with the given id out of the queue, wherever it sits.
func (q *OrderQueue) Remove(id uuid.UUID) (*common.Order, error) {
	i := q.index(id)
	if i < 0 {
		return nil, &common.OrderNotFoundError{ID: id}
	}
	order := q.orders[i]
	copy(q.orders[i:], q.orders[i+1:])
	q.orders[len(q.orders)-1] = nil
	q.orders = q.orders[:len(q.orders)-1]
	return order, nil
}

// Get returns a copy of the order with the given id.
func (q *OrderQueue) Get(id uuid.UUID) (common.Order, bool) {
	i := q.index(id)
	if i < 0 {
		return common.Order{}, false
	}
	return *q.orders[i], true
}

func (q *OrderQueue) Contains(id uuid.UUID) bool {
	return q.index(id) >= 0
}

// Quantity is the total remaining quantity resting in the queue.
func (q *OrderQueue) Quantity() int64 {
	var total int64
	for _, order := range q.orders {
		total += order.Quantity
	}
	return total
}

// Orders returns copies of the queued orders, oldest first.
func (q *OrderQueue) Orders() []common.Order {
	orders := make([]common.Order, len(q.orders))
	for i, order := range q.orders {
		orders[i] = *order
	}
	return orders
}

func (q *OrderQueue) clone() OrderQueue {
	orders := make([]*common.Order, len(q.orders))
	for i, order := range q.orders {
		o := *order
		orders[i] = &o
	}
	return OrderQueue{orders: orders}
}

func (q *OrderQueue) index(id uuid.UUID) int {
	for i, order := range q.orders {
		if order.ID == id {
			return i
		}
	}
	return -1
}
