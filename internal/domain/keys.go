package domain

// KeyPrefix namespaces every key this service writes to Valkey.
const KeyPrefix = "memorag:"
