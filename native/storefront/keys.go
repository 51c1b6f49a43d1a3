package storefront

import "encoding/binary"

var (
	itemPrefix       = []byte("storefront/item/")
	itemCountKey     = []byte("storefront/items/count")
	customerPrefix   = []byte("storefront/customer/")
	customerIndexKey = []byte("storefront/customers/index")
	paymentPrefix    = []byte("storefront/payment/")
	paymentCountKey  = []byte("storefront/payments/count")
	payerIndexPrefix = []byte("storefront/payments/payer/")
)

func seqBytes(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

func itemKey(id uint64) []byte {
	return append(append([]byte(nil), itemPrefix...), seqBytes(id)...)
}

func paymentKey(seq uint64) []byte {
	return append(append([]byte(nil), paymentPrefix...), seqBytes(seq)...)
}

func customerKey(addr [20]byte) []byte {
	return append(append([]byte(nil), customerPrefix...), addr[:]...)
}

func payerIndexKey(addr [20]byte) []byte {
	return append(append([]byte(nil), payerIndexPrefix...), addr[:]...)
}
