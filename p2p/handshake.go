// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package p2p

import (
	"encoding/binary"
	"net"

	"github.com/pkg/errors"
)

// HandshakeBody is spec §6's handshake payload: "node-id (36 bytes),
// network-id, port, and revision string."
type HandshakeBody struct {
	NodeID    NodeID
	NetworkID uint32
	Port      uint16
	Revision  string
}

func EncodeHandshake(h *HandshakeBody) []byte {
	body := make([]byte, NodeIDLength+4+2+len(h.Revision))
	copy(body, h.NodeID[:])
	binary.BigEndian.PutUint32(body[NodeIDLength:], h.NetworkID)
	binary.BigEndian.PutUint16(body[NodeIDLength+4:], h.Port)
	copy(body[NodeIDLength+6:], h.Revision)
	return body
}

func DecodeHandshake(body []byte) (*HandshakeBody, error) {
	if len(body) < NodeIDLength+6 {
		return nil, errors.New("p2p: handshake body too short")
	}
	h := &HandshakeBody{NetworkID: binary.BigEndian.Uint32(body[NodeIDLength:])}
	copy(h.NodeID[:], body[:NodeIDLength])
	h.Port = binary.BigEndian.Uint16(body[NodeIDLength+4:])
	h.Revision = string(body[NodeIDLength+6:])
	return h, nil
}

// PeerRecord is one entry of spec §6's active-nodes body: "{id[36],
// ip[8 or 16], port[2]}". ip is encoded at its natural length (8 for an
// IPv4-mapped short form this protocol uses, 16 for IPv6).
type PeerRecord struct {
	ID   NodeID
	IP   net.IP
	Port uint16
}

func EncodeActiveNodes(records []PeerRecord) []byte {
	var body []byte
	for _, r := range records {
		ip := r.IP
		if ip4 := ip.To4(); ip4 != nil {
			// Pack a v4 address into the 8-byte short form: 4 zero bytes
			// followed by the 4 address bytes.
			var short [8]byte
			copy(short[4:], ip4)
			ip = short[:]
		} else if len(ip) != 16 {
			ip = make(net.IP, 16)
		}
		body = append(body, r.ID[:]...)
		body = append(body, ip...)
		var portBytes [2]byte
		binary.BigEndian.PutUint16(portBytes[:], r.Port)
		body = append(body, portBytes[:]...)
	}
	return body
}

// DecodeActiveNodes resolves spec §6's "ip[8 or 16]" ambiguity (no
// per-record length tag is specified) by assuming every record in one
// message shares the same IP width, picked as whichever of the two
// fixed record lengths evenly divides the body — see DESIGN.md.
func DecodeActiveNodes(body []byte) ([]PeerRecord, error) {
	const v4RecordLen = NodeIDLength + 8 + 2
	const v6RecordLen = NodeIDLength + 16 + 2

	recordLen, ipLen := 0, 0
	switch {
	case len(body) == 0:
		return nil, nil
	case len(body)%v4RecordLen == 0:
		recordLen, ipLen = v4RecordLen, 8
	case len(body)%v6RecordLen == 0:
		recordLen, ipLen = v6RecordLen, 16
	default:
		return nil, errors.New("p2p: active-nodes body matches neither record width")
	}

	records := make([]PeerRecord, 0, len(body)/recordLen)
	for offset := 0; offset < len(body); offset += recordLen {
		var id NodeID
		copy(id[:], body[offset:offset+NodeIDLength])
		ip := net.IP(append([]byte(nil), body[offset+NodeIDLength:offset+NodeIDLength+ipLen]...))
		if ipLen == 8 {
			ip = ip[4:] // drop the zero-padded prefix of the short v4 form
		}
		port := binary.BigEndian.Uint16(body[offset+NodeIDLength+ipLen : offset+recordLen])
		records = append(records, PeerRecord{ID: id, IP: ip, Port: port})
	}
	return records, nil
}
