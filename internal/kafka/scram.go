package kafka

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

// scramClient adapts an xdg-go SCRAM conversation to the interface
// sarama expects from its SCRAMClientGeneratorFunc.
type scramClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

var _ sarama.SCRAMClient = (*scramClient)(nil)

// Begin opens the SCRAM conversation for the given credentials.
func (c *scramClient) Begin(userName, password, authzID string) (err error) {
	c.Client, err = c.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.ClientConversation = c.Client.NewConversation()
	return nil
}

// Step answers one server challenge.
func (c *scramClient) Step(challenge string) (string, error) {
	return c.ClientConversation.Step(challenge)
}

// Done reports whether the conversation has finished.
func (c *scramClient) Done() bool {
	return c.ClientConversation.Done()
}

func scramSHA256() scram.HashGeneratorFcn {
	return func() hash.Hash { return sha256.New() }
}

func scramSHA512() scram.HashGeneratorFcn {
	return func() hash.Hash { return sha512.New() }
}
