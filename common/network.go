package common

import (
	"errors"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// Represents a connection capable of sending full messages between each other
// This is an abstracted type of the underlying websocket connection used by the
// relay code, primarily to allow mocks for testing purposes
type MessageConnection interface {
	// Reads a message, blocking
	ReadMessage() ([]byte, error)
	// Sends a message
	WriteMessage(data []byte) error
	// Sends a closing message and closes the connection
	CloseWithMessage(msg string) error
	// Closes the underlying socket
	Close() error
	// Determine if the connection has been closed or not
	IsClosed() bool
	// Address of the remote peer
	RemoteAddr() net.Addr
}

// WebsocketMessageConnection implements MessageConnection on top of a gorilla
// websocket. Messages are JSON text frames (the Envelope wire format).
type WebsocketMessageConnection struct {
	socket *websocket.Conn
	closed bool

	// gorilla websockets only support one concurrent writer
	writeMutex    *sync.Mutex
	isClosedMutex *sync.RWMutex
}

// WrapWebsocket creates a WebsocketMessageConnection around an established
// websocket connection (either dialed or upgraded server-side)
func WrapWebsocket(socket *websocket.Conn) *WebsocketMessageConnection {
	wsMsgCon := new(WebsocketMessageConnection)
	wsMsgCon.socket = socket
	wsMsgCon.writeMutex = new(sync.Mutex)
	wsMsgCon.isClosedMutex = new(sync.RWMutex)
	wsMsgCon.closed = false
	return wsMsgCon
}

func (connection *WebsocketMessageConnection) ReadMessage() ([]byte, error) {
	_, data, err := connection.socket.ReadMessage()
	if err != nil && websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		connection.isClosedMutex.Lock()
		connection.closed = true
		connection.isClosedMutex.Unlock()
	}
	return data, err
}

func (connection *WebsocketMessageConnection) WriteMessage(data []byte) error {
	connection.writeMutex.Lock()
	defer connection.writeMutex.Unlock()

	return connection.socket.WriteMessage(websocket.TextMessage, data)
}

func (connection *WebsocketMessageConnection) CloseWithMessage(msg string) error {
	connection.writeMutex.Lock()
	err := connection.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, msg))
	connection.writeMutex.Unlock()

	if err != nil {
		return err
	}
	return connection.Close()
}

func (connection *WebsocketMessageConnection) Close() error {
	connection.isClosedMutex.Lock()
	defer connection.isClosedMutex.Unlock()

	if !connection.closed {
		connection.closed = true
		return connection.socket.Close()
	}
	return errors.New("connection already closed")
}

func (connection *WebsocketMessageConnection) IsClosed() bool {
	connection.isClosedMutex.RLock()
	defer connection.isClosedMutex.RUnlock()

	return connection.closed
}

func (connection *WebsocketMessageConnection) RemoteAddr() net.Addr {
	return connection.socket.RemoteAddr()
}

// Represents a source for creating MessageConnections to remote addresses
type MessageConnectionProvider interface {
	// Creates and returns a new MessageConnection that is connected to the specified address
	DialForConnection(address string) (MessageConnection, error)
}

// Implements MessageConnectionProvider by dialing websocket connections
type RelayMessageConnectionProvider struct {
}

func (provider *RelayMessageConnectionProvider) DialForConnection(address string) (MessageConnection, error) {
	webConn, _, err := websocket.DefaultDialer.Dial(address, nil)
	if err != nil {
		return nil, err
	}
	return WrapWebsocket(webConn), nil
}
