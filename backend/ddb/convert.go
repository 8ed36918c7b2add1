package ddb

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	ddbstypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/kaicoh/dynamo-stream/stream"
)

func convertRecord(r ddbstypes.Record) stream.Record {
	out := stream.Record{
		EventID:      aws.ToString(r.EventID),
		EventName:    convertEventName(r.EventName),
		EventVersion: aws.ToString(r.EventVersion),
		EventSource:  aws.ToString(r.EventSource),
		AWSRegion:    aws.ToString(r.AwsRegion),
	}
	if r.Dynamodb != nil {
		out.DynamoDB = convertStreamRecord(r.Dynamodb)
	}
	if r.UserIdentity != nil {
		out.UserIdentity = &stream.UserIdentity{
			PrincipalID: aws.ToString(r.UserIdentity.PrincipalId),
			Type:        aws.ToString(r.UserIdentity.Type),
		}
	}
	return out
}

func convertEventName(n ddbstypes.OperationType) stream.EventName {
	switch n {
	case ddbstypes.OperationTypeInsert:
		return stream.EventInsert
	case ddbstypes.OperationTypeModify:
		return stream.EventModify
	case ddbstypes.OperationTypeRemove:
		return stream.EventRemove
	default:
		return stream.EventUnknown
	}
}

func convertStreamRecord(sr *ddbstypes.StreamRecord) *stream.DynamoDBPayload {
	p := &stream.DynamoDBPayload{
		SequenceNumber: aws.ToString(sr.SequenceNumber),
		SizeBytes:      aws.ToInt64(sr.SizeBytes),
		StreamViewType: convertViewType(sr.StreamViewType),
	}
	if sr.ApproximateCreationDateTime != nil {
		p.ApproximateCreationDateTime = *sr.ApproximateCreationDateTime
	}
	if sr.Keys != nil {
		p.Keys = convertAttrMap(sr.Keys)
	}
	if sr.NewImage != nil {
		p.NewImage = convertAttrMap(sr.NewImage)
	}
	if sr.OldImage != nil {
		p.OldImage = convertAttrMap(sr.OldImage)
	}
	return p
}

func convertViewType(v ddbstypes.StreamViewType) stream.StreamViewType {
	switch v {
	case ddbstypes.StreamViewTypeKeysOnly:
		return stream.ViewKeysOnly
	case ddbstypes.StreamViewTypeNewAndOldImages:
		return stream.ViewNewAndOldImages
	case ddbstypes.StreamViewTypeNewImage:
		return stream.ViewNewImage
	case ddbstypes.StreamViewTypeOldImage:
		return stream.ViewOldImage
	default:
		return ""
	}
}

func convertAttrMap(m map[string]ddbstypes.AttributeValue) map[string]stream.AttributeValue {
	out := make(map[string]stream.AttributeValue, len(m))
	for k, v := range m {
		out[k] = convertAttributeValue(v)
	}
	return out
}

func convertAttributeValue(v ddbstypes.AttributeValue) stream.AttributeValue {
	switch tv := v.(type) {
	case *ddbstypes.AttributeValueMemberB:
		return stream.AttributeValue{Kind: stream.AttrB, B: tv.Value}
	case *ddbstypes.AttributeValueMemberBOOL:
		return stream.AttributeValue{Kind: stream.AttrBOOL, BOOL: tv.Value}
	case *ddbstypes.AttributeValueMemberBS:
		return stream.AttributeValue{Kind: stream.AttrBS, BS: tv.Value}
	case *ddbstypes.AttributeValueMemberL:
		l := make([]stream.AttributeValue, len(tv.Value))
		for i, e := range tv.Value {
			l[i] = convertAttributeValue(e)
		}
		return stream.AttributeValue{Kind: stream.AttrL, L: l}
	case *ddbstypes.AttributeValueMemberM:
		return stream.AttributeValue{Kind: stream.AttrM, M: convertAttrMap(tv.Value)}
	case *ddbstypes.AttributeValueMemberN:
		return stream.AttributeValue{Kind: stream.AttrN, N: tv.Value}
	case *ddbstypes.AttributeValueMemberNS:
		return stream.AttributeValue{Kind: stream.AttrNS, NS: tv.Value}
	case *ddbstypes.AttributeValueMemberNULL:
		return stream.AttributeValue{Kind: stream.AttrNULL, NULL: tv.Value}
	case *ddbstypes.AttributeValueMemberS:
		return stream.AttributeValue{Kind: stream.AttrS, S: tv.Value}
	case *ddbstypes.AttributeValueMemberSS:
		return stream.AttributeValue{Kind: stream.AttrSS, SS: tv.Value}
	default:
		return stream.AttributeValue{Kind: stream.AttrNone}
	}
}
