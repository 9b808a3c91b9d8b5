package message

// NewBlock announces a block. Validation happens after hand-off.
type NewBlock struct {
	GossipNonce string
	Block       []byte
}

func (m *NewBlock) Type() Type        { return TypeNewBlock }
func (m *NewBlock) Nonce() string     { return m.GossipNonce }
func (m *NewBlock) Size() int         { return len(m.Block) }
func (m *NewBlock) Serialize() []byte { return newWriter(m.Size()).rest(m.Block).bytes() }

// DecodeNewBlock decodes a NewBlock body.
func DecodeNewBlock(b []byte, nonce string) (*NewBlock, error) {
	return &NewBlock{GossipNonce: nonce, Block: newReader(b).rest()}, nil
}

// NewTransaction announces a transaction.
type NewTransaction struct {
	GossipNonce string
	Transaction []byte
}

func (m *NewTransaction) Type() Type        { return TypeNewTransaction }
func (m *NewTransaction) Nonce() string     { return m.GossipNonce }
func (m *NewTransaction) Size() int         { return len(m.Transaction) }
func (m *NewTransaction) Serialize() []byte { return newWriter(m.Size()).rest(m.Transaction).bytes() }

// DecodeNewTransaction decodes a NewTransaction body.
func DecodeNewTransaction(b []byte, nonce string) (*NewTransaction, error) {
	return &NewTransaction{GossipNonce: nonce, Transaction: newReader(b).rest()}, nil
}
